package analytics

import (
	"fmt"
	"sort"
)

// AggregateExecutions groups normalized executions into one Trade per
// distinct order identifier. Executions without an order identifier (for
// example funding payments) become singleton trades under a synthetic key
// instead of being merged together.
//
// Output order is deterministic: trades appear in the order their group was
// first seen in the input, and fills inside a group are stable-sorted by
// timestamp, so repeated runs on the same input yield identical results.
func AggregateExecutions(execs []NormalizedExecution) []Trade {
	if len(execs) == 0 {
		return []Trade{}
	}

	groups := make(map[string][]NormalizedExecution)
	keys := make([]string, 0, len(execs))

	for i, exec := range execs {
		key := groupKey(exec, i)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], exec)
	}

	trades := make([]Trade, 0, len(keys))
	for _, key := range keys {
		trades = append(trades, buildTrade(groups[key]))
	}
	return trades
}

// sortTradesByEntry stable-sorts trades ascending by entry timestamp.
func sortTradesByEntry(trades []Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].EntryTimestamp.Before(trades[j].EntryTimestamp)
	})
}

func groupKey(exec NormalizedExecution, index int) string {
	if exec.OrderID != "" {
		return exec.OrderID
	}
	if exec.ExecID == "" {
		// No identifier at all: a per-record key keeps the fill singleton.
		return fmt.Sprintf("exec-%d", index)
	}
	if exec.ExecType == ExecTypeFunding {
		return "funding-" + exec.ExecID
	}
	return "exec-" + exec.ExecID
}

// buildTrade reduces one group of fills into an aggregated trade. The group
// slice holds copies of the caller's records, so sorting here never mutates
// pipeline input.
func buildTrade(fills []NormalizedExecution) Trade {
	sort.SliceStable(fills, func(i, j int) bool {
		return fills[i].Timestamp.Before(fills[j].Timestamp)
	})

	first := fills[0]
	last := fills[len(fills)-1]

	var quantity, weighted float64
	for _, fill := range fills {
		quantity += fill.Quantity
		weighted += fill.Price * fill.Quantity
	}

	avgPrice := 0.0
	if quantity > 0 {
		avgPrice = weighted / quantity
	}

	status := StatusOpen
	if last.Closed {
		status = StatusClosed
	}

	tradeType := TypeShort
	if first.Side == SideBuy {
		tradeType = TypeLong
	}

	orderID := first.OrderID
	if orderID == "" {
		orderID = first.ExecID
	}

	return Trade{
		OrderID:        orderID,
		Symbol:         first.Symbol,
		Side:           first.Side,
		Type:           tradeType,
		Quantity:       quantity,
		AvgPrice:       avgPrice,
		EntryTimestamp: first.Timestamp,
		ExitTimestamp:  last.Timestamp,
		PnL:            executionTradePnL(fills, first.Side, quantity, status == StatusClosed),
		Status:         status,
	}
}
