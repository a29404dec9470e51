package shield

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Schema holds the rate limit rules. endpoint is "METHOD /route/pattern",
// the chi pattern of the matched route (e.g. "POST /documents/{id}/import").
const Schema = `
CREATE TABLE IF NOT EXISTS rate_limits (
    endpoint       TEXT PRIMARY KEY,
    max_requests   INTEGER NOT NULL DEFAULT 60,
    window_seconds INTEGER NOT NULL DEFAULT 60,
    enabled        INTEGER NOT NULL DEFAULT 1
);
`

// Init creates the rate_limits table if missing.
func Init(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("shield: init: %w", err)
	}
	return nil
}

// Rule is the limit for one endpoint.
type Rule struct {
	MaxRequests   int
	WindowSeconds int
	Enabled       bool
}

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter enforces per-IP, per-endpoint limits read from rate_limits.
// Endpoints without a rule are not limited.
type RateLimiter struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	rules   map[string]Rule
	buckets map[string]*bucket
}

// NewRateLimiter creates a limiter over db. Call Reload (or StartReloader)
// to load the rules.
func NewRateLimiter(db *sql.DB, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		db:      db,
		logger:  logger,
		now:     time.Now,
		rules:   make(map[string]Rule),
		buckets: make(map[string]*bucket),
	}
}

// Reload replaces the rules with the content of rate_limits.
func (rl *RateLimiter) Reload(ctx context.Context) error {
	rows, err := rl.db.QueryContext(ctx,
		`SELECT endpoint, max_requests, window_seconds, enabled FROM rate_limits`)
	if err != nil {
		return fmt.Errorf("shield: load rules: %w", err)
	}
	defer rows.Close()

	rules := make(map[string]Rule)
	for rows.Next() {
		var endpoint string
		var r Rule
		var enabled int
		if err := rows.Scan(&endpoint, &r.MaxRequests, &r.WindowSeconds, &enabled); err != nil {
			return fmt.Errorf("shield: scan rule: %w", err)
		}
		r.Enabled = enabled == 1
		rules[endpoint] = r
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("shield: load rules: %w", err)
	}

	rl.mu.Lock()
	rl.rules = rules
	rl.mu.Unlock()
	rl.logger.Debug("shield: rate limit rules loaded", "count", len(rules))
	return nil
}

// StartReloader reloads the rules every interval and drops expired buckets
// until ctx is done.
func (rl *RateLimiter) StartReloader(ctx context.Context, interval time.Duration) {
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				if err := rl.Reload(ctx); err != nil && ctx.Err() == nil {
					rl.logger.Warn("shield: reload rate limits", "error", err)
				}
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, k)
		}
	}
}

func (rl *RateLimiter) allow(ip, endpoint string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rule, ok := rl.rules[endpoint]
	if !ok || !rule.Enabled {
		return true
	}
	now := rl.now()
	key := ip + " " + endpoint
	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(time.Duration(rule.WindowSeconds) * time.Second)}
		return true
	}
	b.count++
	return b.count <= rule.MaxRequests
}

// Middleware answers 429 with a JSON error once a client exceeds the rule
// of the matched route. Mount it inside the chi router so the route
// pattern is known.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.Method + " " + routePattern(r)
		ip := ExtractIP(r)
		if rl.allow(ip, endpoint) {
			next.ServeHTTP(w, r)
			return
		}
		rl.logger.Warn("shield: rate limited", "ip", ip, "endpoint", endpoint)
		w.Header().Set("Retry-After", "60")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	})
}

// routePattern returns the chi pattern of the route that will serve r.
// Middleware runs before routing completes, so the pattern is resolved
// against the router directly.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return r.URL.Path
	}
	tctx := chi.NewRouteContext()
	if rctx.Routes.Match(tctx, r.Method, r.URL.Path) {
		return tctx.RoutePattern()
	}
	return r.URL.Path
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
