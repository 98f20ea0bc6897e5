package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/infra/logging"
	"smartqr-backend/internal/infra/metrics"
	red "smartqr-backend/internal/infra/redis"
)

// Limiter is satisfied by redis.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

const throttleWindow = 24 * time.Hour

// Throttle caps authenticated calls to route at perDay per user. It must run
// after UserAuth. A nil limiter disables it; limiter errors let the request
// through.
func Throttle(l Limiter, route string, perDay int, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil || perDay <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := currentUser(r)
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := l.Allow(r.Context(), red.UserRouteKey(userID, route), perDay, throttleWindow)
			if err != nil {
				logging.With(r.Context(), logger).Warn().Err(err).Str("route", route).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.IncThrottleRejection(route)
				writeError(w, r, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
