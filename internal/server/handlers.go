package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"bitmex-dashboard-go/internal/analytics"
	"bitmex-dashboard-go/internal/bitmex"
	"bitmex-dashboard-go/internal/config"
	"bitmex-dashboard-go/internal/models"
	"bitmex-dashboard-go/internal/wallet"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultWalletCurrency = "USDt"

// Handler holds dependencies for the dashboard API endpoints.
type Handler struct {
	log      *zap.Logger
	cfg      *config.Config
	client   bitmex.RestClientInterface
	db       *gorm.DB
	pipeline *analytics.Pipeline
}

// NewHandler creates a new Handler.
func NewHandler(log *zap.Logger, cfg *config.Config, client bitmex.RestClientInterface, db *gorm.DB) *Handler {
	return &Handler{
		log:      log,
		cfg:      cfg,
		client:   client,
		db:       db,
		pipeline: analytics.NewPipeline(log, cfg.Analytics.BreakevenThreshold),
	}
}

// clientFor resolves the BitMEX client for one request. Credentials in the
// x-api-key/x-api-secret headers win over a stored account named in the
// account query parameter, which wins over the configured defaults.
func (h *Handler) clientFor(r *http.Request) (bitmex.RestClientInterface, error) {
	if key := r.Header.Get("x-api-key"); key != "" {
		return h.client.WithCredentials(key, r.Header.Get("x-api-secret")), nil
	}

	if name := r.URL.Query().Get("account"); name != "" && h.db != nil {
		var account models.Account
		if err := h.db.Where("name = ?", name).First(&account).Error; err != nil {
			return nil, err
		}
		return h.client.WithCredentials(account.ApiKey, account.ApiSecret), nil
	}

	return h.client, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"error": map[string]string{"message": message}})
}

// StatusHandler reports that the server is up.
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ExecutionsHandler proxies one page of the account's execution history.
func (h *Handler) ExecutionsHandler(w http.ResponseWriter, r *http.Request) {
	client, err := h.clientFor(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unknown account")
		return
	}

	count := queryInt(r, "count", 100)
	start := queryInt(r, "start", 0)

	executions, err := client.GetExecutions(r.Context(), count, start)
	if err != nil {
		h.log.Error("Failed to fetch executions", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, executions)
}

// WalletHistoryPnLHandler proxies the wallet ledger filtered to realized-PnL
// transactions, values kept in the upstream scale.
func (h *Handler) WalletHistoryPnLHandler(w http.ResponseWriter, r *http.Request) {
	client, err := h.clientFor(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unknown account")
		return
	}

	count := queryInt(r, "count", 10000)
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = defaultWalletCurrency
	}

	history, err := client.GetWalletHistory(r.Context(), count, currency)
	if err != nil {
		h.log.Error("Failed to fetch wallet history", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

// TransactionHandler looks a single execution up by id.
func (h *Handler) TransactionHandler(w http.ResponseWriter, r *http.Request) {
	txID := r.PathValue("txId")
	if txID == "" {
		h.writeError(w, http.StatusBadRequest, "txId is required")
		return
	}

	client, err := h.clientFor(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unknown account")
		return
	}

	executions, err := client.GetTransaction(r.Context(), txID)
	if err != nil {
		h.log.Error("Failed to fetch transaction", zap.String("txId", txID), zap.Error(err))
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if len(executions) == 0 {
		h.writeError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	h.writeJSON(w, http.StatusOK, executions)
}

// WalletBalanceHandler proxies the account's margin balances.
func (h *Handler) WalletBalanceHandler(w http.ResponseWriter, r *http.Request) {
	client, err := h.clientFor(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unknown account")
		return
	}

	margin, err := client.GetUserMargin(r.Context())
	if err != nil {
		h.log.Error("Failed to fetch wallet balance", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, margin)
}

// CSVSearchHandler searches an uploaded wallet-history CSV for a
// transaction by id.
func (h *Handler) CSVSearchHandler(w http.ResponseWriter, r *http.Request) {
	txID := r.URL.Query().Get("txId")
	if txID == "" {
		h.writeError(w, http.StatusBadRequest, "txId is required")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		h.writeError(w, http.StatusBadRequest, "CSV body is required")
		return
	}

	records, err := wallet.ParseCSV(bytes.NewReader(body))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid CSV: "+err.Error())
		return
	}

	record, ok := wallet.FindTransaction(records, txID)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Transaction not found in CSV")
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// TradesHandler returns the aggregated trade list derived from the full
// execution history.
func (h *Handler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	trades, _, ok := h.fetchTrades(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, trades)
}

// MetricsHandler returns the full performance summary over the aggregated
// trades.
func (h *Handler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	_, summary, ok := h.fetchTrades(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// WalletMetricsHandler reduces the realized-PnL ledger into a summary.
// The break-even threshold defaults from config and can be overridden per
// request.
func (h *Handler) WalletMetricsHandler(w http.ResponseWriter, r *http.Request) {
	client, err := h.clientFor(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unknown account")
		return
	}

	history, err := client.GetWalletHistory(r.Context(), queryInt(r, "count", 10000), defaultWalletCurrency)
	if err != nil {
		h.log.Error("Failed to fetch wallet history", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	threshold := queryFloat(r, "threshold", h.pipeline.Threshold())
	transactions, totalPnL, summary := h.pipeline.WalletSummary(history, threshold)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"transactions": len(transactions),
		"totalPnL":     totalPnL,
		"summary":      summary,
	})
}

// TimeAnalysisHandler groups trades into calendar buckets.
func (h *Handler) TimeAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	dim := analytics.Dimension(r.URL.Query().Get("groupBy"))
	if dim == "" {
		dim = analytics.GroupByDayOfWeek
	}

	trades, _, ok := h.fetchTrades(w, r)
	if !ok {
		return
	}

	buckets, err := analytics.BucketTrades(trades, dim)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, buckets)
}

// PnLChartHandler returns the cumulative PnL series.
func (h *Handler) PnLChartHandler(w http.ResponseWriter, r *http.Request) {
	trades, _, ok := h.fetchTrades(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, analytics.PnLSeries(trades))
}

// BalanceChartHandler returns the account balance series from the wallet
// ledger.
func (h *Handler) BalanceChartHandler(w http.ResponseWriter, r *http.Request) {
	client, err := h.clientFor(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unknown account")
		return
	}

	history, err := client.GetWalletHistory(r.Context(), queryInt(r, "count", 10000), defaultWalletCurrency)
	if err != nil {
		h.log.Error("Failed to fetch wallet history", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, analytics.BalanceSeries(history))
}

// DistributionHandler returns the trade distribution, grouped by symbol or
// by long/short outcome.
func (h *Handler) DistributionHandler(w http.ResponseWriter, r *http.Request) {
	trades, _, ok := h.fetchTrades(w, r)
	if !ok {
		return
	}

	switch by := r.URL.Query().Get("by"); by {
	case "", "symbol":
		h.writeJSON(w, http.StatusOK, analytics.DistributionBySymbol(trades))
	case "side":
		h.writeJSON(w, http.StatusOK, analytics.DistributionBySide(trades))
	default:
		h.writeError(w, http.StatusBadRequest, "unknown distribution "+by)
	}
}

// fetchTrades runs one full fetch-and-compute cycle: all executions through
// the pipeline into trades and their summary. On failure it writes the
// error response and reports ok=false.
func (h *Handler) fetchTrades(w http.ResponseWriter, r *http.Request) ([]analytics.Trade, analytics.MetricsSummary, bool) {
	client, err := h.clientFor(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unknown account")
		return nil, analytics.MetricsSummary{}, false
	}

	raws, err := client.GetAllExecutions(r.Context(), h.cfg.Analytics.MaxExecutions)
	if err != nil {
		h.log.Error("Failed to fetch executions", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, err.Error())
		return nil, analytics.MetricsSummary{}, false
	}

	trades, summary := h.pipeline.Summary(raws)
	return trades, summary, true
}

// AccountsHandler lists stored accounts or creates a new one.
func (h *Handler) AccountsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var accounts []models.Account
		if err := h.db.Order("name").Find(&accounts).Error; err != nil {
			h.log.Error("Failed to list accounts", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "failed to list accounts")
			return
		}
		h.writeJSON(w, http.StatusOK, accounts)

	case http.MethodPost:
		// The secret is write-only: accepted here, never serialized back.
		var payload struct {
			Name      string `json:"name"`
			ApiKey    string `json:"apiKey"`
			ApiSecret string `json:"apiSecret"`
			Testnet   bool   `json:"testnet"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid account payload")
			return
		}
		if payload.Name == "" || payload.ApiKey == "" {
			h.writeError(w, http.StatusBadRequest, "name and apiKey are required")
			return
		}
		account := models.Account{
			Name:      payload.Name,
			ApiKey:    payload.ApiKey,
			ApiSecret: payload.ApiSecret,
			Testnet:   payload.Testnet,
		}
		if err := h.db.Create(&account).Error; err != nil {
			h.log.Error("Failed to create account", zap.Error(err))
			h.writeError(w, http.StatusConflict, "failed to create account")
			return
		}
		h.writeJSON(w, http.StatusCreated, account)

	default:
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// DeleteAccountHandler removes a stored account by name.
func (h *Handler) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	result := h.db.Where("name = ?", name).Delete(&models.Account{})
	if result.Error != nil {
		h.log.Error("Failed to delete account", zap.Error(result.Error))
		h.writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}
	if result.RowsAffected == 0 {
		h.writeError(w, http.StatusNotFound, "account not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return fallback
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64); err == nil {
		return v
	}
	return fallback
}
