package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// ── Get ──

func TestGetReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
			t.Errorf("User-Agent: got %q", ua)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	data, err := Get(context.Background(), srv.Client(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("body: got %q", data)
	}
}

func TestGetRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := Get(context.Background(), srv.Client(), srv.URL, nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestGetHTTPErrorTruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	_, err := Get(context.Background(), srv.Client(), srv.URL, nil)
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *ErrHTTP, got %v", err)
	}
	if httpErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d", httpErr.StatusCode)
	}
	if len(httpErr.Body) != 1024 {
		t.Errorf("body not truncated: %d bytes", len(httpErr.Body))
	}
}

// ── Session ──

func TestSessionEnsureBootstrapsOnce(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
	}))
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	client := srv.Client()
	client.Jar = jar
	s := NewSession(client, srv.URL, time.Minute)

	for i := 0; i < 3; i++ {
		if err := s.Ensure(context.Background(), false); err != nil {
			t.Fatalf("Ensure: %v", err)
		}
	}
	if hits != 1 {
		t.Errorf("bootstrap hits within TTL: got %d, want 1", hits)
	}

	// force bypasses the TTL
	if err := s.Ensure(context.Background(), true); err != nil {
		t.Fatalf("forced Ensure: %v", err)
	}
	if hits != 2 {
		t.Errorf("hits after force: got %d, want 2", hits)
	}
}

func TestSessionEnsureExpires(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	s := NewSession(srv.Client(), srv.URL, 20*time.Millisecond)
	s.Ensure(context.Background(), false)
	time.Sleep(30 * time.Millisecond)
	s.Ensure(context.Background(), false)

	if hits != 2 {
		t.Errorf("hits after expiry: got %d, want 2", hits)
	}
}

func TestIsAuthStatus(t *testing.T) {
	for _, code := range []int{401, 403, 429} {
		if !isAuthStatus(code) {
			t.Errorf("isAuthStatus(%d): want true", code)
		}
	}
	for _, code := range []int{200, 404, 500} {
		if isAuthStatus(code) {
			t.Errorf("isAuthStatus(%d): want false", code)
		}
	}
}

// ── Rate limiter ──

func TestRateLimiterBlocksWhenDrained(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first token: %v", err)
	}
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("second token: %v", err)
	}
	// Bucket empty with an hour-long refill: Wait must respect the context.
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
