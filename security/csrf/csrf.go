// Package csrf implementa o token anti-forgery no esquema double-submit:
// um secret por sessão de browser em cookie httpOnly, e um token derivado
// (HMAC-SHA256 sobre um salt aleatório) enviado via header nas mutações.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultCookieName = "csrf-secret"
	DefaultHeaderName = "X-CSRF-Token"

	secretLen = 32
	saltLen   = 16
)

type Guard struct {
	CookieName string
	HeaderName string
	Secure     bool // true em produção
	MaxAge     time.Duration
}

func NewGuard(cookieName, headerName string, secure bool) *Guard {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	return &Guard{
		CookieName: cookieName,
		HeaderName: headerName,
		Secure:     secure,
		MaxAge:     24 * time.Hour,
	}
}

// Issue devolve um token novo derivado do secret da sessão. Se ainda não há
// secret, gera um e grava o cookie; se já existe, reaproveita (sem rotação).
func (g *Guard) Issue(w http.ResponseWriter, r *http.Request) (string, error) {
	secret := g.secretFrom(r)
	if secret == "" {
		buf := make([]byte, secretLen)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		secret = base64.RawURLEncoding.EncodeToString(buf)
		http.SetCookie(w, &http.Cookie{
			Name:     g.CookieName,
			Value:    secret,
			Path:     "/",
			MaxAge:   int(g.MaxAge.Seconds()),
			HttpOnly: true,
			Secure:   g.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
	return deriveToken(secret)
}

// Verify valida o token do header contra o secret do cookie. Nunca retorna
// erro: token ausente, secret ausente ou MAC inválido viram false.
func (g *Guard) Verify(r *http.Request) bool {
	return g.VerifyToken(r, r.Header.Get(g.HeaderName))
}

func (g *Guard) VerifyToken(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	secret := g.secretFrom(r)
	if secret == "" {
		return false
	}

	salt, mac, ok := splitToken(token)
	if !ok {
		return false
	}
	return hmac.Equal(mac, sign(secret, salt))
}

// Invalidate apaga o cookie do secret (logout). Todo token já emitido a
// partir dele deixa de validar.
func (g *Guard) Invalidate(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (g *Guard) secretFrom(r *http.Request) string {
	c, err := r.Cookie(g.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func deriveToken(secret string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(salt) + "." +
		base64.RawURLEncoding.EncodeToString(sign(secret, salt)), nil
}

func sign(secret string, salt []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(salt)
	return h.Sum(nil)
}

func splitToken(token string) (salt, mac []byte, ok bool) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return nil, nil, false
	}
	salt, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, false
	}
	mac, err = base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, false
	}
	return salt, mac, true
}
