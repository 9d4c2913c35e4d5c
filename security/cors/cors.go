// Package cors decide preflight e headers de CORS por allow-list estática.
package cors

import (
	"net/http"
	"strconv"
	"time"
)

type Policy struct {
	AllowedOrigins []string
	AllowMethods   string
	AllowHeaders   string
	MaxAge         time.Duration
}

func NewPolicy(origins []string, csrfHeader string) *Policy {
	return &Policy{
		AllowedOrigins: origins,
		AllowMethods:   "GET, POST, OPTIONS",
		AllowHeaders:   "Content-Type, Authorization, " + csrfHeader,
		MaxAge:         24 * time.Hour,
	}
}

func (p *Policy) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, o := range p.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Preflight responde um OPTIONS. Origin fora da allow-list (ou ausente)
// recebe 403 sem nenhum header de CORS; origem permitida recebe 204 com o
// echo do origin. Retorna se a origem foi aceita (para o caller logar
// blocked_origin).
func (p *Policy) Preflight(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	w.Header().Add("Vary", "Origin")

	if !p.Allowed(origin) {
		w.WriteHeader(http.StatusForbidden)
		return false
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", p.AllowMethods)
	h.Set("Access-Control-Allow-Headers", p.AllowHeaders)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Max-Age", strconv.Itoa(int(p.MaxAge.Seconds())))
	w.WriteHeader(http.StatusNoContent)
	return true
}

// Apply espelha os headers de CORS em respostas não-preflight quando a
// origem é permitida (requests com credenciais precisam do echo).
func (p *Policy) Apply(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !p.Allowed(origin) {
		return
	}
	w.Header().Add("Vary", "Origin")
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
}
