package ratelimit

import (
	"net/http"
	"time"

	"mcd-dashboard/middleware/ratelimit/application"
	"mcd-dashboard/middleware/ratelimit/infra"
	"mcd-dashboard/respond"
)

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita requests em voo. Max <= 0 desliga o estágio.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				respond.Error(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
