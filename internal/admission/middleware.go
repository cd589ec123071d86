package admission

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradegate/internal/models"
)

// Decider is the decision capability the gate needs from the engine.
type Decider interface {
	Decide(ctx context.Context, key Key, policy Policy) (Decision, error)
}

// Gate returns HTTP middleware enforcing the policy table in front of
// every route. Exempt paths pass through untouched. Denied requests are
// answered with 429 and never reach the downstream handler. Any internal
// fault fails open: the request is forwarded unthrottled, because
// availability is preferred over strict enforcement.
func Gate(table *Table, engine Decider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.URL.Path

			if table.IsExempt(route) {
				next.ServeHTTP(w, r)
				return
			}

			policy := table.Resolve(route)
			key := Key{Client: clientIP(r), Route: route}

			decision, err := engine.Decide(r.Context(), key, policy)
			if err != nil {
				slog.Error("Admission decision failed, allowing request",
					"path", route,
					"client", key.Client,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(decision.Limit) - decision.Count
			if remaining < 0 {
				remaining = 0
			}

			// Headers go out on allow and deny alike; they must be set
			// before the handler writes its status line.
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				retryAfter := int(time.Until(decision.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(models.NewRateLimitedResponse(policy.Limit, policy.Window, retryAfter))

				slog.Warn("Rate limit exceeded",
					"client", key.Client,
					"path", route,
					"count", decision.Count,
					"limit", decision.Limit,
					"retry_after", retryAfter,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client identity from the request, checking proxy
// headers before the socket address. The port is stripped so one client
// maps to one bucket across connections.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
