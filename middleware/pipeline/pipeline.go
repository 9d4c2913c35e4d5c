// Package pipeline compõe os estágios de hardening em volta de cada handler
// de rota.
//
// Ordem fixa de avaliação por request:
//
//	HeadersInit → Cors(OPTIONS) → Concurrency → Auth → BodySize →
//	Csrf(verbos mutantes) → RateLimit → Handler
//
// Qualquer estágio pode encerrar cedo com uma resposta; os headers de
// segurança são gravados no começo (antes de qualquer write), então saem
// idênticos em todos os caminhos de saída.
package pipeline

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"mcd-dashboard/config"
	"mcd-dashboard/middleware/ratelimit"
	"mcd-dashboard/middleware/ratelimit/application"
	"mcd-dashboard/middleware/ratelimit/domain"
	"mcd-dashboard/respond"
	"mcd-dashboard/security/cors"
	"mcd-dashboard/security/csrf"
	"mcd-dashboard/security/events"
	"mcd-dashboard/security/headers"
	"mcd-dashboard/security/identity"
)

type Pipeline struct {
	Env      config.Environment
	Headers  headers.Injector
	Cors     *cors.Policy
	Resolver *identity.Resolver
	Csrf     *csrf.Guard
	Limiter  application.Service
	Stats    domain.StatsStore
	Events   *events.Logger

	Buckets      map[string]domain.Bucket
	MaxBodyBytes int64
	Concurrency  ratelimit.ConcurrencyOptions
}

// RouteOptions classifica a rota para o pipeline.
type RouteOptions struct {
	// Protected exige sessão autenticada (401 caso contrário).
	Protected bool
	// Bucket nomeia a política de rate limit ("api", "write", "autoClaim").
	// Vazio usa "api".
	Bucket string
	// MaxBodyBytes sobrepõe o limite default do pipeline quando > 0.
	MaxBodyBytes int64
}

// Wrap envolve o handler com todos os estágios, na ordem do contrato.
// O handler de negócio só roda se todos os estágios passarem.
func (p *Pipeline) Wrap(h http.Handler, opts RouteOptions) http.Handler {
	wrapped := ratelimit.Middleware(ratelimit.Options{
		Service: p.Limiter,
		Bucket:  p.bucket(opts.Bucket),
		KeyFn:   p.rateLimitKey,
		Stats:   p.Stats,
		Events:  p.Events,
	})(h)
	wrapped = p.csrfStage(wrapped)
	wrapped = p.bodySizeStage(opts, wrapped)
	if opts.Protected {
		wrapped = p.authStage(wrapped)
	}
	wrapped = ratelimit.ConcurrencyMiddleware(p.Concurrency)(wrapped)
	wrapped = p.corsStage(wrapped)
	return p.headersStage(wrapped)
}

func (p *Pipeline) bucket(name string) domain.Bucket {
	if name == "" {
		name = "api"
	}
	if b, ok := p.Buckets[name]; ok {
		return b
	}
	// rota sem bucket conhecido cai na política geral
	return p.Buckets["api"]
}

// rateLimitKey usa a identidade já resolvida pelo AuthCheck quando existe;
// em rota não protegida resolve na hora. Resolve nunca falha — token ruim
// degrada para chave de IP, nunca derruba a request.
func (p *Pipeline) rateLimitKey(r *http.Request) domain.Key {
	if id, ok := identity.FromContext(r.Context()); ok {
		return domain.Key(id.RateLimitKey())
	}
	return domain.Key(p.Resolver.Resolve(r).RateLimitKey())
}

// headersStage grava os headers de segurança e o request id antes de
// qualquer outro estágio escrever a resposta.
func (p *Pipeline) headersStage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-Id", reqID)
		p.Headers.Apply(w.Header(), r.TLS != nil)

		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), reqID)))
	})
}

func (p *Pipeline) corsStage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			if !p.Cors.Preflight(w, r) {
				p.Events.BlockedOrigin(RequestID(r.Context()), r.Header.Get("Origin"), r.Method, r.URL.Path)
			}
			return
		}

		p.Cors.Apply(w, r)
		next.ServeHTTP(w, r)
	})
}

func (p *Pipeline) authStage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := p.Resolver.Resolve(r)
		if !id.Authenticated() {
			// só method + pathname: query string pode carregar segredo
			p.Events.UnauthorizedAPIAccess(RequestID(r.Context()), r.Method, r.URL.Path)
			respond.Error(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithContext(r.Context(), id)))
	})
}

type bodyTooLargeBody struct {
	Message      string `json:"message"`
	MaxSize      int64  `json:"maxSize"`
	ReceivedSize int64  `json:"receivedSize"`
}

func (p *Pipeline) bodySizeStage(opts RouteOptions, next http.Handler) http.Handler {
	max := opts.MaxBodyBytes
	if max <= 0 {
		max = p.MaxBodyBytes
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cl := r.Header.Get("Content-Length"); cl != "" {
			if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size > max {
				respond.JSON(w, http.StatusRequestEntityTooLarge, bodyTooLargeBody{
					Message:      "Request body too large. Maximum size is " + strconv.FormatInt(max/1024, 10) + "KB.",
					MaxSize:      max,
					ReceivedSize: size,
				})
				return
			}
		}

		// Content-Length ausente ou mentiroso: o reader corta em max de
		// qualquer forma para verbos com corpo.
		if isMutating(r.Method) && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, max)
		}

		next.ServeHTTP(w, r)
	})
}

func (p *Pipeline) csrfStage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isMutating(r.Method) && !p.Csrf.Verify(r) {
			respond.Error(w, http.StatusForbidden, "Invalid CSRF token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID devolve o id gerado pelo headersStage ("" fora do pipeline).
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
