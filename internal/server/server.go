package server

import (
	"context"
	"fmt"
	"net/http"

	"bitmex-dashboard-go/internal/bitmex"
	"bitmex-dashboard-go/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Server provides the dashboard HTTP interface.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer wires the handler routes and returns a server ready to start.
func NewServer(log *zap.Logger, cfg *config.Config, client bitmex.RestClientInterface, db *gorm.DB) *Server {
	h := NewHandler(log, cfg, client, db)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", h.StatusHandler)

	// Signed proxy endpoints.
	mux.HandleFunc("GET /api/bitmex/executions", h.ExecutionsHandler)
	mux.HandleFunc("GET /api/bitmex/wallet-history-pnl", h.WalletHistoryPnLHandler)
	mux.HandleFunc("GET /api/bitmex/transaction/{txId}", h.TransactionHandler)
	mux.HandleFunc("GET /api/bitmex/wallet-balance", h.WalletBalanceHandler)
	mux.HandleFunc("POST /api/bitmex/csv-search", h.CSVSearchHandler)

	// Derived analytics endpoints.
	mux.HandleFunc("GET /api/analytics/trades", h.TradesHandler)
	mux.HandleFunc("GET /api/analytics/metrics", h.MetricsHandler)
	mux.HandleFunc("GET /api/analytics/wallet-metrics", h.WalletMetricsHandler)
	mux.HandleFunc("GET /api/analytics/time-analysis", h.TimeAnalysisHandler)
	mux.HandleFunc("GET /api/analytics/pnl-chart", h.PnLChartHandler)
	mux.HandleFunc("GET /api/analytics/balance-chart", h.BalanceChartHandler)
	mux.HandleFunc("GET /api/analytics/distribution", h.DistributionHandler)

	// Stored credential sets.
	mux.HandleFunc("/api/accounts", h.AccountsHandler)
	mux.HandleFunc("DELETE /api/accounts/{name}", h.DeleteAccountHandler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: withCORS(withRequestLog(log, mux)),
		},
		logger: log.Named("api-server"),
	}
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
