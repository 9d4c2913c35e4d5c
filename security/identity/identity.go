// Package identity resolve a identidade do caller por request.
//
// Sessão autenticada (JWT assinado em cookie ou bearer) vira User; qualquer
// falha de decode vira Anonymous com o IP de rede. Resolução nunca derruba a
// request.
package identity

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity é User (UserID preenchido) ou Anonymous (só IP).
type Identity struct {
	UserID string
	IP     string
}

func (id Identity) Authenticated() bool { return id.UserID != "" }

// RateLimitKey forma a chave do rate limiter. Usuário sempre tem precedência
// sobre IP quando os dois existem.
func (id Identity) RateLimitKey() string {
	if id.Authenticated() {
		return "user:" + id.UserID
	}
	return "ip:" + id.IP
}

type Resolver struct {
	Secret     []byte
	CookieName string
}

// Resolve extrai a identidade da request. Função pura dos headers/cookies:
// sem side effects e sem erro — token malformado é tratado como ausente.
func (r *Resolver) Resolve(req *http.Request) Identity {
	anon := Identity{IP: ClientIP(req)}

	raw := r.sessionToken(req)
	if raw == "" || len(r.Secret) == 0 {
		return anon
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return r.Secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return anon
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return anon
	}

	// "id" explícito ganha do "sub" padrão, como no token de sessão original.
	if id, ok := claims["id"].(string); ok && strings.TrimSpace(id) != "" {
		return Identity{UserID: strings.TrimSpace(id), IP: anon.IP}
	}
	if sub, ok := claims["sub"].(string); ok && strings.TrimSpace(sub) != "" {
		return Identity{UserID: strings.TrimSpace(sub), IP: anon.IP}
	}
	return anon
}

func (r *Resolver) sessionToken(req *http.Request) string {
	if c, err := req.Cookie(r.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := req.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// Issue assina um token de sessão HS256. Usado pelo fluxo de login (fora deste
// repositório) e pelos testes.
func (r *Resolver) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.Secret)
}

// ClientIP segue a cadeia: primeiro IP do X-Forwarded-For, X-Real-IP,
// CF-Connecting-IP, senão "unknown". Só é confiável atrás de proxy que
// sobrescreve esses headers.
func ClientIP(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(req.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(req.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	return "unknown"
}

type ctxKey struct{}

// WithContext guarda a identidade resolvida para estágios seguintes do pipeline.
func WithContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
