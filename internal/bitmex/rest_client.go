package bitmex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bitmex-dashboard-go/internal/analytics"
	"bitmex-dashboard-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL        = "https://www.bitmex.com"
	testnetBaseURL = "https://testnet.bitmex.com"
	apiPrefix      = "/api/v1"
	// authWindow is how long a signed request stays valid.
	authWindow = 60 * time.Second
	// pageSize is the number of executions fetched per pagination request.
	pageSize = 500
)

// RestClientInterface defines the interface for the BitMEX REST API client.
type RestClientInterface interface {
	GetExecutions(ctx context.Context, count, start int) ([]analytics.RawExecution, error)
	GetAllExecutions(ctx context.Context, maxResults int) ([]analytics.RawExecution, error)
	GetWalletHistory(ctx context.Context, count int, currency string) ([]analytics.WalletTransaction, error)
	GetTransaction(ctx context.Context, execID string) ([]analytics.RawExecution, error)
	GetUserMargin(ctx context.Context) (*Margin, error)
	GetActiveInstruments(ctx context.Context) ([]Instrument, error)
	WithCredentials(apiKey, secretKey string) RestClientInterface
}

// RestClient is a client for the BitMEX REST API.
// It implements the RestClientInterface.
type RestClient struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
	now       func() time.Time
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new BitMEX REST API client.
func NewRestClient(cfg *config.Bitmex, logger *zap.Logger) *RestClient {
	var url string
	if cfg.Testnet {
		url = testnetBaseURL
		logger.Warn("Using BitMEX Testnet")
	} else {
		url = baseURL
		logger.Info("Using BitMEX Production API")
	}

	client := resty.New().SetBaseURL(url)

	// Initialize the rate limiter
	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:    client,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger,
		limiter:   limiter,
		now:       time.Now,
	}
}

// WithCredentials returns a client using the given key pair while sharing
// the underlying HTTP client and rate limiter. Used when a request carries
// its own credentials instead of the configured account.
func (c *RestClient) WithCredentials(apiKey, secretKey string) RestClientInterface {
	clone := *c
	clone.apiKey = apiKey
	clone.secretKey = secretKey
	return &clone
}

// sign creates the HMAC-SHA256 request signature over
// verb + path + expires + data, where path includes the query string.
func (c *RestClient) sign(verb, path string, expires int64, data string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(verb + path + strconv.FormatInt(expires, 10) + data))
	return hex.EncodeToString(h.Sum(nil))
}

// authHeaders builds the expiring authentication header set for a request.
func (c *RestClient) authHeaders(verb, pathWithQuery, body string) map[string]string {
	expires := c.now().Add(authWindow).Unix()
	return map[string]string{
		"api-key":       c.apiKey,
		"api-expires":   strconv.FormatInt(expires, 10),
		"api-signature": c.sign(verb, pathWithQuery, expires, body),
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// GetExecutions fetches one page of the account's execution history,
// most recent first.
func (c *RestClient) GetExecutions(ctx context.Context, count, start int) ([]analytics.RawExecution, error) {
	params := url.Values{}
	params.Set("count", strconv.Itoa(count))
	params.Set("start", strconv.Itoa(start))
	params.Set("reverse", "true")
	path := apiPrefix + "/execution?" + params.Encode()

	var executions []analytics.RawExecution
	req := c.client.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders("GET", path, "")).
		SetResult(&executions)

	if _, err := c.doRequest(ctx, "GET", path, req); err != nil {
		return nil, fmt.Errorf("failed to get executions: %w", err)
	}

	return executions, nil
}

// GetAllExecutions pages through the execution history until the last page
// or maxResults is reached. A failed page aborts the loop but keeps what
// was already collected.
func (c *RestClient) GetAllExecutions(ctx context.Context, maxResults int) ([]analytics.RawExecution, error) {
	var all []analytics.RawExecution

	for start := 0; len(all) < maxResults; start += pageSize {
		page, err := c.GetExecutions(ctx, pageSize, start)
		if err != nil {
			if len(all) == 0 {
				return nil, err
			}
			c.logger.Warn("Pagination aborted, returning partial execution history",
				zap.Int("collected", len(all)), zap.Error(err))
			break
		}

		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break // last page
		}
	}

	c.logger.Info("Fetched execution history", zap.Int("executions", len(all)))
	return all, nil
}

// GetWalletHistory fetches the wallet ledger filtered down to realized-PnL
// transactions. Amounts stay in the upstream satoshi-like scale.
func (c *RestClient) GetWalletHistory(ctx context.Context, count int, currency string) ([]analytics.WalletTransaction, error) {
	params := url.Values{}
	params.Set("count", strconv.Itoa(count))
	params.Set("currency", currency)
	params.Set("reverse", "true")
	path := apiPrefix + "/user/walletHistory?" + params.Encode()

	var history []analytics.WalletTransaction
	req := c.client.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders("GET", path, "")).
		SetResult(&history)

	if _, err := c.doRequest(ctx, "GET", path, req); err != nil {
		return nil, fmt.Errorf("failed to get wallet history: %w", err)
	}

	pnl := analytics.FilterRealisedPnL(history)
	c.logger.Debug("Fetched wallet history",
		zap.Int("transactions", len(history)),
		zap.Int("realised_pnl", len(pnl)),
	)
	return pnl, nil
}

// GetTransaction looks a single execution up by its execID.
func (c *RestClient) GetTransaction(ctx context.Context, execID string) ([]analytics.RawExecution, error) {
	params := url.Values{}
	params.Set("filter", fmt.Sprintf(`{"execID":%q}`, execID))
	path := apiPrefix + "/execution?" + params.Encode()

	var executions []analytics.RawExecution
	req := c.client.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders("GET", path, "")).
		SetResult(&executions)

	if _, err := c.doRequest(ctx, "GET", path, req); err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", execID, err)
	}

	return executions, nil
}

// Margin represents the response from the /user/margin endpoint.
type Margin struct {
	Account         int64   `json:"account"`
	Currency        string  `json:"currency"`
	WalletBalance   float64 `json:"walletBalance"`
	MarginBalance   float64 `json:"marginBalance"`
	AvailableMargin float64 `json:"availableMargin"`
}

// GetUserMargin fetches the account's wallet and margin balances.
func (c *RestClient) GetUserMargin(ctx context.Context) (*Margin, error) {
	path := apiPrefix + "/user/margin"

	req := c.client.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders("GET", path, "")).
		SetResult(&Margin{})

	resp, err := c.doRequest(ctx, "GET", path, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user margin: %w", err)
	}

	return resp.Result().(*Margin), nil
}

// Instrument contains information about a tradable instrument.
type Instrument struct {
	Symbol    string  `json:"symbol"`
	State     string  `json:"state"`
	LastPrice float64 `json:"lastPrice"`
}

// GetActiveInstruments fetches the active instrument list. This is a
// public endpoint, useful as a connectivity check, so it is not signed.
func (c *RestClient) GetActiveInstruments(ctx context.Context) ([]Instrument, error) {
	path := apiPrefix + "/instrument/active"

	var instruments []Instrument
	req := c.client.R().
		SetContext(ctx).
		SetResult(&instruments)

	if _, err := c.doRequest(ctx, "GET", path, req); err != nil {
		return nil, fmt.Errorf("failed to get active instruments: %w", err)
	}

	return instruments, nil
}
