package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/obs"
)

const loginLimiterName = "admin_login"

// NewLoginStore returns a fixed-window store for login attempts backed by Redis.
func NewLoginStore(rdb *redis.Client) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "ratelimit:login"})
}

// LoginMiddleware throttles login attempts per client IP using a formatted rate such as "5-M".
// Store errors are passed to onError and answered with 503.
func LoginMiddleware(store limiter.Store, rate string, onError func(error)) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse login rate %q: %w", rate, err)
	}
	lim := limiter.New(store, parsed)

	mw := stdlib.NewMiddleware(lim,
		stdlib.WithKeyGetter(ByClientIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			obs.RecordRateLimited(loginLimiterName)
			resetAt := time.Now().Add(parsed.Period)
			if reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64); err == nil {
				resetAt = time.Unix(reset, 0)
			}
			tooManyRequests(w, resetAt)
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			if onError != nil {
				onError(err)
			}
			common.JSONError(w, http.StatusServiceUnavailable, "RATE_LIMIT_UNAVAILABLE", "try again later", nil)
		}),
	)
	return mw.Handler, nil
}
