// Package headers aplica o conjunto fixo de headers de segurança.
//
// O injector roda no começo do pipeline, então os headers saem idênticos em
// qualquer caminho de saída (sucesso, 401, 429...). A única variação é o CSP
// por ambiente e o HSTS condicionado a TLS.
package headers

import (
	"net/http"
	"strings"

	"mcd-dashboard/config"
)

type Injector struct {
	Env config.Environment

	csp string
}

func NewInjector(env config.Environment) Injector {
	return Injector{Env: env, csp: buildCSP(env)}
}

// Apply muta os headers da resposta. Idempotente.
func (i Injector) Apply(h http.Header, tls bool) {
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy",
		"geolocation=(), microphone=(), camera=(), payment=(), usb=(), interest-cohort=()")
	h.Set("Content-Security-Policy", i.csp)

	if tls {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

func (i Injector) CSP() string { return i.csp }

// buildCSP monta o Content-Security-Policy. Em produção script-src é só
// 'self'; fora dela o 'unsafe-eval' entra por causa do tooling de hot-reload
// local. A escolha é por ambiente, nunca por request.
func buildCSP(env config.Environment) string {
	scriptSrc := "script-src 'self'"
	if !env.IsProduction() {
		scriptSrc = "script-src 'self' 'unsafe-eval'"
	}

	return strings.Join([]string{
		"default-src 'self'",
		scriptSrc,
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data:",
		"font-src 'self' data:",
		"connect-src 'self'",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}, "; ")
}

// List devolve os nomes dos headers sempre presentes (útil para testes de
// uniformidade).
func List() []string {
	return []string{
		"X-Frame-Options",
		"X-Content-Type-Options",
		"Referrer-Policy",
		"Permissions-Policy",
		"Content-Security-Policy",
	}
}
