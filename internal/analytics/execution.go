package analytics

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// ExecutionSatoshiScale converts the realisedPnl/execComm fields on raw
	// execution rows from satoshis to decimal currency.
	ExecutionSatoshiScale = 100_000_000
	// WalletSatoshiScale converts wallet-history amount/fee/walletBalance
	// values to decimal currency. The two scales apply to different upstream
	// fields and must not be unified.
	WalletSatoshiScale = 1_000_000
)

const (
	SideBuy  = "Buy"
	SideSell = "Sell"

	TypeLong  = "Long"
	TypeShort = "Short"

	StatusOpen   = "Open"
	StatusClosed = "Closed"

	ExecTypeFunding = "Funding"
)

// RawExecution mirrors a row from the BitMEX /execution endpoint. Every
// field is optional upstream; pointers mark the numeric fields whose
// presence changes how PnL is derived.
type RawExecution struct {
	OrderID     string   `json:"orderID"`
	ExecID      string   `json:"execID"`
	Symbol      string   `json:"symbol"`
	Side        string   `json:"side"`
	OrderQty    float64  `json:"orderQty"`
	LastQty     float64  `json:"lastQty"`
	Price       float64  `json:"price"`
	LastPx      float64  `json:"lastPx"`
	Timestamp   string   `json:"timestamp"`
	RealisedPnl *float64 `json:"realisedPnl,omitempty"`
	ExecComm    *float64 `json:"execComm,omitempty"`
	OrdStatus   string   `json:"ordStatus"`
	ExecType    string   `json:"execType"`
	LeavesQty   *float64 `json:"leavesQty,omitempty"`
}

// NormalizedExecution is the canonical execution record consumed by the
// aggregation pipeline. All defaults have been applied and all monetary
// fields are in decimal currency units.
type NormalizedExecution struct {
	OrderID     string    `json:"orderId"`
	ExecID      string    `json:"execId"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Timestamp   time.Time `json:"timestamp"`
	RealizedPnl float64   `json:"realizedPnl"`
	Commission  float64   `json:"commission"`
	OrderStatus string    `json:"orderStatus"`
	ExecType    string    `json:"execType"`

	// HasPnl records whether the upstream row carried a realisedPnl value
	// at all; a zero realized PnL is distinct from a missing one.
	HasPnl bool `json:"-"`
	// Closed reports whether this fill terminates its order.
	Closed bool `json:"-"`
}

// Normalizer maps raw BitMEX execution rows into canonical records.
// It is the single place where defaults for missing fields are applied.
type Normalizer struct {
	log *zap.Logger
	now func() time.Time
}

// NewNormalizer creates a Normalizer logging data-quality issues to log.
func NewNormalizer(log *zap.Logger) *Normalizer {
	return &Normalizer{log: log, now: time.Now}
}

// Normalize converts a batch of raw executions. Malformed input never
// produces an error; missing fields fall back to safe defaults.
func (n *Normalizer) Normalize(raws []RawExecution) []NormalizedExecution {
	out := make([]NormalizedExecution, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.normalizeOne(raw))
	}
	return out
}

func (n *Normalizer) normalizeOne(raw RawExecution) NormalizedExecution {
	exec := NormalizedExecution{
		OrderID:     raw.OrderID,
		ExecID:      raw.ExecID,
		Symbol:      raw.Symbol,
		Side:        raw.Side,
		OrderStatus: raw.OrdStatus,
		ExecType:    raw.ExecType,
	}

	if exec.Symbol == "" {
		exec.Symbol = "Unknown"
	}
	if exec.OrderStatus == "" {
		exec.OrderStatus = StatusClosed
	}

	// Fill quantity prefers the executed quantity over the ordered one.
	if raw.LastQty > 0 {
		exec.Quantity = raw.LastQty
	} else if raw.OrderQty > 0 {
		exec.Quantity = raw.OrderQty
	}

	if raw.Price != 0 {
		exec.Price = raw.Price
	} else {
		exec.Price = raw.LastPx
	}

	if raw.RealisedPnl != nil {
		exec.RealizedPnl = satoshiExecutionToDecimal(*raw.RealisedPnl)
		exec.HasPnl = true
	}
	if raw.ExecComm != nil {
		exec.Commission = satoshiExecutionToDecimal(*raw.ExecComm)
	}

	exec.Timestamp = n.parseTimestamp(raw.Timestamp, raw.ExecID)

	exec.Closed = raw.OrdStatus == "Filled" || raw.OrdStatus == "Canceled" ||
		raw.OrdStatus == "" || (raw.LeavesQty != nil && *raw.LeavesQty == 0)

	return exec
}

// satoshiExecutionToDecimal converts an execution-row monetary value to
// decimal currency. USDT-margined contracts report these fields already in
// decimal units, so magnitudes above 1 pass through untouched.
func satoshiExecutionToDecimal(v float64) float64 {
	if v > 1 || v < -1 {
		return v
	}
	return v / ExecutionSatoshiScale
}

// parseTimestamp accepts the timestamp formats BitMEX emits. An unparseable
// value falls back to the current time; a data-quality concern, not a fatal
// condition.
func (n *Normalizer) parseTimestamp(value, execID string) time.Time {
	if value == "" {
		return n.now()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	n.log.Warn("unparseable execution timestamp, falling back to now",
		zap.String("timestamp", value),
		zap.String("execID", execID),
	)
	return n.now()
}

// WalletTransaction mirrors a row from the BitMEX wallet-history endpoint.
// Amount, Fee and WalletBalance remain in the upstream satoshi-like scale.
type WalletTransaction struct {
	TransactID     string    `json:"transactID"`
	TransactType   string    `json:"transactType"`
	TransactStatus string    `json:"transactStatus"`
	Timestamp      time.Time `json:"timestamp"`
	Amount         float64   `json:"amount"`
	Fee            float64   `json:"fee"`
	Address        string    `json:"address"`
	Currency       string    `json:"currency"`
	WalletBalance  float64   `json:"walletBalance"`
}

// Trade is the aggregate of all fills sharing an order identifier: one
// logical position entry/exit. Owned by the aggregator, read-only for
// everything downstream.
type Trade struct {
	OrderID        string    `json:"orderId"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Type           string    `json:"type"`
	Quantity       float64   `json:"quantity"`
	AvgPrice       float64   `json:"avgPrice"`
	EntryTimestamp time.Time `json:"entryTimestamp"`
	ExitTimestamp  time.Time `json:"exitTimestamp"`
	PnL            float64   `json:"pnl"`
	Status         string    `json:"status"`
}

// String implements fmt.Stringer for log output.
func (t Trade) String() string {
	return fmt.Sprintf("%s %s %s qty=%.4f avg=%.4f pnl=%.4f", t.OrderID, t.Type, t.Symbol, t.Quantity, t.AvgPrice, t.PnL)
}
