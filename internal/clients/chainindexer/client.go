// Package chainindexer provides a client for etherscan-style chain indexing
// APIs. It only reads ERC-20 token balances, which is all reconciliation needs.
package chainindexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ProviderName identifies this client in ExternalError values
const ProviderName = "chainindexer"

// maxResponseBody caps how much of a response is read
const maxResponseBody = 64 << 10

// Config configures the client
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	RatePerSecond float64
	RateBurst     int
}

// BalanceQuery identifies one token balance
type BalanceQuery struct {
	ChainID         int64
	ContractAddress string
	WalletAddress   string
}

// apiResponse is the envelope every etherscan-style endpoint returns
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Client is the chain indexer API client.
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a new chain indexer client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		log:     log.With().Str("client", ProviderName).Logger(),
	}
}

// TokenBalance returns the raw balance of q.WalletAddress for the token at
// q.ContractAddress, in the token's smallest unit. Transient failures are
// retried with a linear backoff; every error is a *domain.ExternalError.
func (c *Client) TokenBalance(ctx context.Context, q BalanceQuery) (*big.Int, error) {
	var lastErr *domain.ExternalError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(attempt)
			c.log.Debug().
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Err(lastErr).
				Msg("Retrying token balance request")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, c.unavailable(q, 0, "", ctx.Err())
			}
		}

		balance, err := c.fetch(ctx, q)
		if err == nil {
			metrics.RecordIndexerRequest("ok")
			return balance, nil
		}

		lastErr = err
		if !err.Retryable() {
			metrics.RecordIndexerRequest("invalid")
			return nil, err
		}
		metrics.RecordIndexerRequest("retryable")
	}

	c.log.Warn().
		Err(lastErr).
		Int("attempts", c.maxRetries+1).
		Str("wallet", q.WalletAddress).
		Msg("Chain indexer unavailable")
	return nil, lastErr
}

// fetch performs a single request
func (c *Client) fetch(ctx context.Context, q BalanceQuery) (*big.Int, *domain.ExternalError) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.unavailable(q, 0, "", fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(q), nil)
	if err != nil {
		return nil, c.invalid(q, 0, "", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.IndexerRequestSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.unavailable(q, 0, "", fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, c.unavailable(q, resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, c.unavailable(q, resp.StatusCode, snippet(body), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.invalid(q, resp.StatusCode, snippet(body), nil)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, c.invalid(q, resp.StatusCode, "", fmt.Errorf("failed to decode response: %w", err))
	}

	var result string
	resultIsString := json.Unmarshal(parsed.Result, &result) == nil

	if parsed.Status != "1" && parsed.Status != "OK" {
		msg := parsed.Message
		if resultIsString && result != "" {
			msg = strings.TrimSpace(msg + ": " + result)
		}
		// Providers report throttling in-band with status "0"
		if strings.Contains(strings.ToLower(msg), "rate limit") {
			return nil, c.unavailable(q, resp.StatusCode, msg, nil)
		}
		return nil, c.invalid(q, resp.StatusCode, msg, nil)
	}

	if !resultIsString {
		return nil, c.invalid(q, resp.StatusCode, parsed.Message, errors.New("result is not a string"))
	}
	balance, ok := new(big.Int).SetString(strings.TrimSpace(result), 10)
	if !ok || balance.Sign() < 0 {
		return nil, c.invalid(q, resp.StatusCode, parsed.Message, fmt.Errorf("result %q is not a non-negative integer", result))
	}
	return balance, nil
}

func (c *Client) requestURL(q BalanceQuery) string {
	params := url.Values{}
	params.Set("chainid", strconv.FormatInt(q.ChainID, 10))
	params.Set("module", "account")
	params.Set("action", "tokenbalance")
	params.Set("contractaddress", q.ContractAddress)
	params.Set("address", q.WalletAddress)
	params.Set("tag", "latest")
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + params.Encode()
}

func (c *Client) unavailable(q BalanceQuery, status int, msg string, cause error) *domain.ExternalError {
	return c.externalError(domain.ErrReconciliationUnavailable, q, status, msg, cause)
}

func (c *Client) invalid(q BalanceQuery, status int, msg string, cause error) *domain.ExternalError {
	return c.externalError(domain.ErrInvalidExternalResponse, q, status, msg, cause)
}

func (c *Client) externalError(kind error, q BalanceQuery, status int, msg string, cause error) *domain.ExternalError {
	return &domain.ExternalError{
		Kind:            kind,
		Provider:        ProviderName,
		ProviderMessage: msg,
		StatusCode:      status,
		Attempted: map[string]string{
			"chain_id":         strconv.FormatInt(q.ChainID, 10),
			"contract_address": q.ContractAddress,
			"wallet_address":   q.WalletAddress,
		},
		Cause: cause,
	}
}

// snippet trims a response body for inclusion in an error
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
