package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"mcd-dashboard/middleware/ratelimit/application"
	"mcd-dashboard/middleware/ratelimit/domain"
	"mcd-dashboard/respond"
	"mcd-dashboard/security/events"
)

// KeyFunc extrai a chave de rate limit da request (identidade resolvida,
// IP, etc). Não pode falhar; na dúvida devolve uma chave de IP.
type KeyFunc func(r *http.Request) domain.Key

type Options struct {
	Service application.Service
	Bucket  domain.Bucket
	KeyFn   KeyFunc
	Stats   domain.StatsStore
	Events  *events.Logger
}

type rateLimitedBody struct {
	Message   string `json:"message"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Reset     int64  `json:"reset"`
}

// Middleware aplica o bucket configurado à rota.
//
// Tradução para HTTP:
//   - permitido: decora a resposta com X-RateLimit-Limit/Remaining/Reset
//   - estourado: 429 com corpo {message, limit, remaining, reset} + Retry-After
//   - store fora do ar (fail closed): 503 "Service temporarily unavailable"
func Middleware(opts Options) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			dec, err := opts.Service.Check(r.Context(), opts.Bucket, key)
			if err != nil {
				if opts.Events != nil && errors.Is(err, domain.ErrBackendUnavailable) {
					opts.Events.BackendUnavailable("ratelimit", err)
				}
				respond.Error(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
				return
			}

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     key,
					Bucket:  opts.Bucket.Name,
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", formatInt(dec.Limit))
			h.Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
			h.Set("X-RateLimit-Reset", formatInt64(dec.ResetAt.UnixMilli()))

			if !dec.Allowed {
				retry := dec.RetryAfter(time.Now())
				h.Set("Retry-After", formatInt(int(retry.Seconds())))
				respond.JSON(w, http.StatusTooManyRequests, rateLimitedBody{
					Message:   "Too many requests. Please try again later.",
					Limit:     dec.Limit,
					Remaining: 0,
					Reset:     dec.ResetAt.UnixMilli(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
