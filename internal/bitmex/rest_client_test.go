package bitmex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bitmex-dashboard-go/internal/analytics"
	"bitmex-dashboard-go/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const testSecret = "test_secret_key"

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // Use a no-op logger for tests

	rc := &RestClient{
		client:    client,
		apiKey:    "test_api_key",
		secretKey: testSecret,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
		now:       time.Now,
	}

	return rc, server
}

// assertSignedRequest recomputes the BitMEX signature server-side and checks
// the auth header set on the incoming request.
func assertSignedRequest(t *testing.T, r *http.Request) {
	t.Helper()

	assert.Equal(t, "test_api_key", r.Header.Get("api-key"))

	expires := r.Header.Get("api-expires")
	assert.NotEmpty(t, expires)

	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	message := r.Method + path + expires
	h := hmac.New(sha256.New, []byte(testSecret))
	h.Write([]byte(message))
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), r.Header.Get("api-signature"))
}

func TestGetExecutions(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/execution", r.URL.Path)
			assert.Equal(t, "100", r.URL.Query().Get("count"))
			assert.Equal(t, "true", r.URL.Query().Get("reverse"))
			assertSignedRequest(t, r)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"orderID":"ord-1","execID":"e1","symbol":"XBTUSD","side":"Buy","orderQty":10,"price":100,"timestamp":"2024-03-01T10:00:00.000Z","ordStatus":"Filled"}
			]`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		executions, err := rc.GetExecutions(context.Background(), 100, 0)

		assert.NoError(t, err)
		assert.Len(t, executions, 1)
		assert.Equal(t, "ord-1", executions[0].OrderID)
		assert.Equal(t, 10.0, executions[0].OrderQty)
	})

	t.Run("APIError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key"}}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		executions, err := rc.GetExecutions(context.Background(), 100, 0)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get executions")
		assert.Nil(t, executions)
	})
}

func TestGetAllExecutionsPagination(t *testing.T) {
	var starts []int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var start int
		_, _ = fmt.Sscanf(r.URL.Query().Get("start"), "%d", &start)
		starts = append(starts, start)

		// First page full, second page short: pagination must stop there.
		n := pageSize
		if start > 0 {
			n = 3
		}
		page := make([]analytics.RawExecution, n)
		for i := range page {
			page[i] = analytics.RawExecution{ExecID: fmt.Sprintf("e%d-%d", start, i)}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	all, err := rc.GetAllExecutions(context.Background(), 10000)

	assert.NoError(t, err)
	assert.Len(t, all, pageSize+3)
	assert.Equal(t, []int{0, pageSize}, starts)
}

func TestGetWalletHistoryFiltersRealisedPnL(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/user/walletHistory", r.URL.Path)
		assert.Equal(t, "USDt", r.URL.Query().Get("currency"))
		assertSignedRequest(t, r)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"transactID":"t1","transactType":"RealisedPNL","amount":2000000,"fee":10000},
			{"transactID":"t2","transactType":"Deposit","amount":99000000},
			{"transactID":"t3","transactType":"RealisedPNL","amount":-500000,"fee":5000}
		]`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	history, err := rc.GetWalletHistory(context.Background(), 10000, "USDt")

	assert.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, "t1", history[0].TransactID)
	assert.Equal(t, "t3", history[1].TransactID)
}

func TestGetTransaction(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/execution", r.URL.Path)
		assert.Equal(t, `{"execID":"e42"}`, r.URL.Query().Get("filter"))
		assertSignedRequest(t, r)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"execID":"e42","symbol":"XBTUSD"}]`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	executions, err := rc.GetTransaction(context.Background(), "e42")

	assert.NoError(t, err)
	assert.Len(t, executions, 1)
	assert.Equal(t, "e42", executions[0].ExecID)
}

func TestGetUserMargin(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/user/margin", r.URL.Path)
		assertSignedRequest(t, r)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"currency":"USDt","walletBalance":1682039462,"marginBalance":1682039462,"availableMargin":1500000000}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	margin, err := rc.GetUserMargin(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "USDt", margin.Currency)
	assert.Equal(t, 1682039462.0, margin.WalletBalance)
}

func TestGetActiveInstrumentsUnsigned(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/instrument/active", r.URL.Path)
		assert.Empty(t, r.Header.Get("api-signature")) // public endpoint

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol":"XBTUSD","state":"Open","lastPrice":65000}]`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	instruments, err := rc.GetActiveInstruments(context.Background())

	assert.NoError(t, err)
	assert.Len(t, instruments, 1)
	assert.Equal(t, "XBTUSD", instruments[0].Symbol)
}

func TestWithCredentials(t *testing.T) {
	cfg := &config.Bitmex{ApiKey: "base-key", SecretKey: "base-secret", RateLimit: 10, RateLimitBurst: 5}
	rc := NewRestClient(cfg, zap.NewNop())

	override := rc.WithCredentials("req-key", "req-secret").(*RestClient)

	assert.Equal(t, "req-key", override.apiKey)
	assert.Equal(t, "req-secret", override.secretKey)
	// Original client keeps its configured credentials.
	assert.Equal(t, "base-key", rc.apiKey)
	// The limiter is shared between the two.
	assert.Same(t, rc.limiter, override.limiter)
}

func TestNewRestClient(t *testing.T) {
	t.Run("Testnet", func(t *testing.T) {
		cfg := &config.Bitmex{Testnet: true}
		rc := NewRestClient(cfg, zap.NewNop())
		assert.NotNil(t, rc)
		assert.Equal(t, cfg.ApiKey, rc.apiKey)
		assert.Equal(t, cfg.SecretKey, rc.secretKey)
	})

	t.Run("Production", func(t *testing.T) {
		cfg := &config.Bitmex{Testnet: false, ApiKey: "k", SecretKey: "s"}
		rc := NewRestClient(cfg, zap.NewNop())
		assert.NotNil(t, rc)
		assert.Equal(t, "k", rc.apiKey)
		assert.Equal(t, "s", rc.secretKey)
	})
}
