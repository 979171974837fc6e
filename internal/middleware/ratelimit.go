package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"highbid/internal/domain"
	"highbid/internal/i18n"
)

// Counter counts hits on key within a fixed window. It returns the count
// including this hit and the time left in the window.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type bucket struct {
	count int64
	until time.Time
}

// MemoryCounter keeps windows in process memory.
type MemoryCounter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{buckets: map[string]*bucket{}, now: time.Now}
}

func (c *MemoryCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	b, ok := c.buckets[key]
	if !ok || !now.Before(b.until) {
		b = &bucket{until: now.Add(window)}
		c.buckets[key] = b
		if len(c.buckets) > 10000 {
			c.sweep(now)
		}
	}
	b.count++
	return b.count, b.until.Sub(now), nil
}

func (c *MemoryCounter) sweep(now time.Time) {
	for k, b := range c.buckets {
		if !now.Before(b.until) {
			delete(c.buckets, k)
		}
	}
}

// RedisCounter shares windows across API replicas.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	key = c.prefix + key
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("ratelimit: redis hit: %w", err)
	}
	left := ttl.Val()
	if left <= 0 {
		if err := c.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("ratelimit: redis expire: %w", err)
		}
		left = window
	}
	return incr.Val(), left, nil
}

// Limiter rejects requests over limit per window with 429.
type Limiter struct {
	name    string
	counter Counter
	limit   int64
	window  time.Duration

	// OnLimited is called with the limiter name for every rejected request.
	OnLimited func(name string)
}

func NewLimiter(name string, counter Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{name: name, counter: counter, limit: int64(limit), window: window}
}

// RateLimit limits every request per client IP in memory.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return NewLimiter("ip", NewMemoryCounter(), limit, per).ByIP
}

func (l *Limiter) ByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.limit <= 0 || l.allow(w, r, "ip:"+clientIPForRateLimit(r)) {
			next.ServeHTTP(w, r)
		}
	})
}

// ByToken limits token-authenticated callers per token. It must run after
// Authenticate; session callers pass through.
func (l *Limiter) ByToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if l.limit <= 0 || !ok || p.Method != domain.AuthToken || p.TokenID == nil {
			next.ServeHTTP(w, r)
			return
		}
		if l.allow(w, r, "token:"+p.TokenID.String()) {
			next.ServeHTTP(w, r)
		}
	})
}

func (l *Limiter) allow(w http.ResponseWriter, r *http.Request, key string) bool {
	count, reset, err := l.counter.Hit(r.Context(), key, l.window)
	if err != nil {
		// counter outage fails open
		return true
	}
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(reset.Round(time.Second).Seconds())))
	if count <= l.limit {
		return true
	}
	if l.OnLimited != nil {
		l.OnLimited(l.name)
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(reset.Round(time.Second).Seconds())))
	writeError(w, r, http.StatusTooManyRequests, "rate_limited", i18n.MsgTooManyRequests)
	return false
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip != "" && net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
