package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareLimitsPerClient(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 2, time.Minute, nil)
	handler := l.Middleware()(okHandler())

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/config", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("192.0.2.1:1234"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := send("192.0.2.1:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After header")
	}
	if rec := send("192.0.2.2:1234"); rec.Code != http.StatusOK {
		t.Fatalf("other clients must not be limited, got %d", rec.Code)
	}
}

func TestClientAddr(t *testing.T) {
	testCases := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "no proxies configured", remote: "10.0.0.1:80", headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, want: "203.0.113.9"},
		{name: "trusted proxy", trusted: []string{"10.0.0.0/8"}, remote: "10.0.0.1:80", headers: map[string]string{"X-Forwarded-For": "203.0.113.9"}, want: "203.0.113.9"},
		{name: "untrusted peer", trusted: []string{"10.0.0.0/8"}, remote: "198.51.100.7:80", headers: map[string]string{"X-Forwarded-For": "203.0.113.9"}, want: "198.51.100.7"},
		{name: "single address proxy", trusted: []string{"10.0.0.1"}, remote: "10.0.0.1:80", headers: map[string]string{"X-Real-IP": "203.0.113.10"}, want: "203.0.113.10"},
		{name: "ipv6", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewIPRateLimiter(rate.Limit(1), 1, time.Minute, tc.trusted)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := l.clientAddr(req); got != netip.MustParseAddr(tc.want) {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestSweepAndEviction(t *testing.T) {
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(rate.Limit(1), 1, time.Minute, nil)
	l.now = func() time.Time { return now }
	l.maxEntries = 2

	a := netip.MustParseAddr("192.0.2.1")
	b := netip.MustParseAddr("192.0.2.2")
	c := netip.MustParseAddr("192.0.2.3")
	l.limiter(a)
	now = now.Add(time.Second)
	l.limiter(b)
	now = now.Add(time.Second)
	l.limiter(c)

	if _, ok := l.limiters[a]; ok {
		t.Fatal("expected the oldest entry to be evicted")
	}

	now = now.Add(2 * time.Minute)
	l.sweep()
	if len(l.limiters) != 0 {
		t.Fatalf("expected idle entries to be swept, have %d", len(l.limiters))
	}
}
