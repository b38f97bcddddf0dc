// Package ratelimit throttles API requests per client address.
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultMaxEntries = 10000

// IPRateLimiter keeps one token bucket per client address.
type IPRateLimiter struct {
	mu         sync.Mutex
	limiters   map[netip.Addr]*limiterEntry
	rate       rate.Limit
	burst      int
	idle       time.Duration
	maxEntries int
	trusted    []netip.Prefix
	now        func() time.Time
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewIPRateLimiter allows r requests per second with bursts of b per
// client. Buckets idle for longer than idle are dropped. Forwarding headers
// are honoured only from trustedProxies (CIDRs or single addresses); with
// none configured every peer is trusted.
func NewIPRateLimiter(r rate.Limit, b int, idle time.Duration, trustedProxies []string) *IPRateLimiter {
	l := &IPRateLimiter{
		limiters:   make(map[netip.Addr]*limiterEntry),
		rate:       r,
		burst:      b,
		idle:       idle,
		maxEntries: defaultMaxEntries,
		now:        time.Now,
	}
	for _, p := range trustedProxies {
		if prefix, err := netip.ParsePrefix(p); err == nil {
			l.trusted = append(l.trusted, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(p); err == nil {
			l.trusted = append(l.trusted, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return l
}

// Run drops idle buckets until ctx is done.
func (l *IPRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *IPRateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idle)
	for addr, entry := range l.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(l.limiters, addr)
		}
	}
}

func (l *IPRateLimiter) limiter(addr netip.Addr) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.limiters[addr]; ok {
		entry.lastAccess = now
		return entry.limiter
	}
	if len(l.limiters) >= l.maxEntries {
		l.evictOldest()
	}
	entry := &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst), lastAccess: now}
	l.limiters[addr] = entry
	return entry.limiter
}

func (l *IPRateLimiter) evictOldest() {
	var (
		oldest     netip.Addr
		oldestTime time.Time
	)
	for addr, entry := range l.limiters {
		if !oldest.IsValid() || entry.lastAccess.Before(oldestTime) {
			oldest = addr
			oldestTime = entry.lastAccess
		}
	}
	if oldest.IsValid() {
		delete(l.limiters, oldest)
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After hint.
func (l *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := l.limiter(l.clientAddr(r))
			reservation := limiter.ReserveN(l.now(), 1)
			if delay := reservation.DelayFrom(l.now()); !reservation.OK() || delay > 0 {
				reservation.CancelAt(l.now())
				seconds := int(math.Ceil(delay.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *IPRateLimiter) fromTrustedProxy(addr netip.Addr) bool {
	if len(l.trusted) == 0 {
		return true
	}
	for _, prefix := range l.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func (l *IPRateLimiter) clientAddr(r *http.Request) netip.Addr {
	remote := parseAddr(r.RemoteAddr)
	if !l.fromTrustedProxy(remote) {
		return remote
	}
	// Leftmost X-Forwarded-For entry is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.Unmap()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap()
	}
	return remote
}

func parseAddr(hostport string) netip.Addr {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.IPv4Unspecified()
	}
	return addr.Unmap()
}
