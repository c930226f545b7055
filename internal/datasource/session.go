package datasource

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

// Session manages the bootstrapped cookie state the exchange endpoints
// require. Both exchange adapters hold one; the mutex guards the cookie
// expiry against concurrent per-symbol fetches.
type Session struct {
	mu      sync.Mutex
	client  *http.Client
	homeURL string
	ttl     time.Duration
	expiry  time.Time
}

// NewSession creates a session bound to the given client and bootstrap URL.
// The client must carry a cookie jar.
func NewSession(client *http.Client, homeURL string, ttl time.Duration) *Session {
	return &Session{
		client:  client,
		homeURL: homeURL,
		ttl:     ttl,
	}
}

// Ensure guarantees a live cookie session, visiting the bootstrap page when
// the current one has expired or force is set.
func (s *Session) Ensure(ctx context.Context, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !force && time.Now().Before(s.expiry) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.homeURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain body

	s.expiry = time.Now().Add(s.ttl)
	return nil
}

// isAuthStatus reports whether the HTTP status indicates a dead session.
// These trigger exactly one forced session refresh and retry.
func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized ||
		code == http.StatusForbidden ||
		code == http.StatusTooManyRequests
}
