package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// allowedHeaders mirrors the header set browsers send to the dashboard,
// including the per-request credential headers.
const allowedHeaders = "X-CSRF-Token, X-Requested-With, Accept, Accept-Version, " +
	"Content-Length, Content-MD5, Content-Type, Date, X-Api-Version, " +
	"x-api-key, x-api-secret, x-testnet"

// withCORS answers preflight requests and stamps the permissive CORS
// headers the browser dashboard needs.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRequestLog logs one line per request at debug level.
func withRequestLog(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
