// Package datasource implements the provider adapters that translate
// vendor-specific responses into the canonical Quote shape. Each adapter owns
// its transport quirks (sessions, alternate hosts, batching, scraping); the
// orchestrator in internal/quote only sees the QuoteProvider contract.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/avinashsk/equitydesk/pkg/models"
)

// QuoteProvider is the contract every adapter implements.
// Fetch returns quotes for whichever of the requested canonical symbols the
// adapter could resolve; absent symbols are treated as misses by the caller.
// A returned error fails the whole batch for this provider only.
type QuoteProvider interface {
	Name() string

	// Ready reports whether the adapter can be used at all. Adapters that
	// need an API key return ErrNoAPIKey when none is configured, and the
	// orchestrator records a skip instead of calling Fetch.
	Ready() error

	Fetch(ctx context.Context, symbols []string) ([]models.Quote, error)
}

// ErrNoAPIKey marks an adapter that is configured out for lack of credentials.
var ErrNoAPIKey = errors.New("no api key configured")

// ErrRateLimited is returned when an upstream rate-limits the request.
var ErrRateLimited = errors.New("rate limited by data source")

// ProviderError wraps a failure scoped to one adapter call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ParseError marks an expected structure missing from a scraped document.
type ParseError struct {
	Source string
	What   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Source, e.What)
}

// ErrHTTP wraps an HTTP error status with a truncated body.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// DefaultUserAgent is sent on every outbound request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// DefaultTimeout bounds each network call when no timeout is configured.
const DefaultTimeout = 9 * time.Second

// NewHTTPClient returns a client with the given per-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Get performs a GET with default headers and returns the body bytes.
// Error bodies are truncated to 1 KiB.
func Get(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return io.ReadAll(resp.Body)
}

// --- Rate limiter ---

// RateLimiter is a simple token bucket shared per adapter.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter allows maxTokens requests per refillRate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or the context is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()
		if rl.tokens > 0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// refill adds tokens based on elapsed time. Must be called with mu held.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed >= rl.refillRate {
		periods := int(elapsed / rl.refillRate)
		rl.tokens += periods
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.refillRate)
	}
}
