package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mcd-dashboard/middleware/pipeline"
)

// NewRouter monta as rotas com a classe de hardening de cada uma.
//
// Classes: leituras → bucket "api"; claim/logout → "write";
// auto-claim → "autoClaim". O preflight OPTIONS passa pelo mesmo pipeline
// (o estágio de CORS intercepta antes do handler).
func NewRouter(p *pipeline.Pipeline, h *Handlers) chi.Router {
	r := chi.NewRouter()

	handle := func(method, pattern string, fn http.HandlerFunc, opts pipeline.RouteOptions) {
		wrapped := p.Wrap(fn, opts)
		r.Method(method, pattern, wrapped)
		r.Method(http.MethodOptions, pattern, wrapped)
	}

	read := pipeline.RouteOptions{Protected: true, Bucket: "api"}
	write := pipeline.RouteOptions{Protected: true, Bucket: "write"}

	handle(http.MethodGet, "/api/coupons", h.Coupons, read)
	handle(http.MethodGet, "/api/available-coupons", h.AvailableCoupons, read)
	handle(http.MethodGet, "/api/campaigns", h.Campaigns, read)
	handle(http.MethodGet, "/api/csrf-token", h.CsrfToken, read)

	handle(http.MethodPost, "/api/coupons/claim", h.ClaimCoupon, write)
	handle(http.MethodPost, "/api/auth/logout", h.Logout, write)
	handle(http.MethodPost, "/api/available-coupons/auto-claim", h.AutoClaim,
		pipeline.RouteOptions{Protected: true, Bucket: "autoClaim"})

	// relógio do upstream: público, só com a política geral
	handle(http.MethodGet, "/api/time", h.TimeInfo, pipeline.RouteOptions{Bucket: "api"})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return r
}
