// Package api expõe as rotas do dashboard: leituras proxy do upstream MCP e
// as duas ações de escrita (claim e auto-claim), além de csrf-token e logout.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"mcd-dashboard/mcp"
	"mcd-dashboard/respond"
	"mcd-dashboard/security/csrf"
)

// Service é o que os handlers precisam do cliente MCP (interface para os
// testes substituírem o upstream).
type Service interface {
	MyCoupons(ctx context.Context) (*mcp.CouponList, error)
	AvailableCoupons(ctx context.Context) (*mcp.CouponList, error)
	Campaigns(ctx context.Context, date string) (*mcp.CampaignList, error)
	AutoClaim(ctx context.Context) (*mcp.AutoClaimResult, error)
	TimeInfo(ctx context.Context) (*mcp.TimeInfo, error)
}

type Handlers struct {
	mcp   Service
	guard *csrf.Guard
	log   *zap.Logger
}

func NewHandlers(svc Service, guard *csrf.Guard, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{mcp: svc, guard: guard, log: log}
}

func (h *Handlers) Coupons(w http.ResponseWriter, r *http.Request) {
	data, err := h.mcp.MyCoupons(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, data)
}

func (h *Handlers) AvailableCoupons(w http.ResponseWriter, r *http.Request) {
	data, err := h.mcp.AvailableCoupons(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, data)
}

func (h *Handlers) Campaigns(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date != "" {
		if fe := validateDate(date); fe != nil {
			writeValidationError(w, *fe)
			return
		}
	}

	data, err := h.mcp.Campaigns(r.Context(), date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, data)
}

type claimRequest struct {
	CouponID string `json:"couponId"`
}

// ClaimCoupon valida o couponId e dispara o resgate. O upstream só suporta
// auto-claim em lote, então o efeito é resgatar todos os disponíveis — o
// endpoint existe para compatibilidade com a UI de claim individual.
func (h *Handlers) ClaimCoupon(w http.ResponseWriter, r *http.Request) {
	var body claimRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.Error(w, http.StatusBadRequest, "couponId is required")
		return
	}
	if fe := validateCouponID(body.CouponID); fe != nil {
		writeValidationError(w, *fe)
		return
	}

	result, err := h.mcp.AutoClaim(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

func (h *Handlers) AutoClaim(w http.ResponseWriter, r *http.Request) {
	result, err := h.mcp.AutoClaim(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

func (h *Handlers) TimeInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.mcp.TimeInfo(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, info)
}

// CsrfToken emite (ou reemite a partir do secret existente) um token CSRF.
func (h *Handlers) CsrfToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.guard.Issue(w, r)
	if err != nil {
		h.log.Error("csrf token issue failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Could not issue CSRF token")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"token": token})
}

// Logout apaga o secret de CSRF — todo token emitido a partir dele deixa de
// valer. A sessão em si é gerida pelo provedor de login, fora daqui.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.guard.Invalidate(w)
	respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
