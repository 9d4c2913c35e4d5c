package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// issueToken emite um token e devolve o cookie de secret gravado (se houver).
func issueToken(t *testing.T, g *Guard, existing *http.Cookie) (string, *http.Cookie) {
	t.Helper()

	req := httptest.NewRequest("GET", "http://example/api/csrf-token", nil)
	if existing != nil {
		req.AddCookie(existing)
	}
	w := httptest.NewRecorder()

	token, err := g.Issue(w, req)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	for _, c := range w.Result().Cookies() {
		if c.Name == g.CookieName {
			return token, c
		}
	}
	return token, nil
}

func TestIssueThenVerifyRoundTrip(t *testing.T) {
	g := NewGuard("", "", false)

	token, secret := issueToken(t, g, nil)
	if secret == nil {
		t.Fatalf("expected secret cookie to be set on first issue")
	}
	if !secret.HttpOnly {
		t.Fatalf("secret cookie must be httpOnly")
	}
	if secret.SameSite != http.SameSiteStrictMode {
		t.Fatalf("secret cookie must be SameSite=Strict")
	}

	req := httptest.NewRequest("POST", "http://example/api/coupons/claim", nil)
	req.AddCookie(secret)
	req.Header.Set(g.HeaderName, token)

	if !g.Verify(req) {
		t.Fatalf("expected freshly issued token to verify")
	}
}

func TestIssueReusesExistingSecret(t *testing.T) {
	g := NewGuard("", "", false)

	token1, secret := issueToken(t, g, nil)
	token2, rotated := issueToken(t, g, secret)
	if rotated != nil {
		t.Fatalf("expected no new secret cookie when one already exists")
	}

	// os dois tokens derivam do mesmo secret e devem validar
	for _, token := range []string{token1, token2} {
		req := httptest.NewRequest("POST", "http://example/", nil)
		req.AddCookie(secret)
		req.Header.Set(g.HeaderName, token)
		if !g.Verify(req) {
			t.Fatalf("expected token to verify against reused secret")
		}
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	g := NewGuard("", "", false)
	_, secret := issueToken(t, g, nil)

	cases := []string{
		"",
		"arbitrary-string",
		"bm90.dmFsaWQ",
		"semponto",
	}
	for _, token := range cases {
		req := httptest.NewRequest("POST", "http://example/", nil)
		req.AddCookie(secret)
		if token != "" {
			req.Header.Set(g.HeaderName, token)
		}
		if g.Verify(req) {
			t.Fatalf("expected token %q to fail verification", token)
		}
	}
}

func TestVerifyFailsWithoutSecretCookie(t *testing.T) {
	g := NewGuard("", "", false)
	token, _ := issueToken(t, g, nil)

	req := httptest.NewRequest("POST", "http://example/", nil)
	req.Header.Set(g.HeaderName, token)

	if g.Verify(req) {
		t.Fatalf("expected verification to fail without the secret cookie")
	}
}

func TestInvalidateKillsIssuedTokens(t *testing.T) {
	g := NewGuard("", "", false)
	token, _ := issueToken(t, g, nil)

	w := httptest.NewRecorder()
	g.Invalidate(w)

	var deleted *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == g.CookieName {
			deleted = c
		}
	}
	if deleted == nil || deleted.MaxAge >= 0 {
		t.Fatalf("expected invalidation to delete the secret cookie")
	}

	// browser descarta o cookie; request seguinte chega sem secret
	req := httptest.NewRequest("POST", "http://example/", nil)
	req.Header.Set(g.HeaderName, token)
	if g.Verify(req) {
		t.Fatalf("expected previously issued token to fail after invalidation")
	}

	// mesmo que um secret novo apareça, o token antigo não valida
	_, fresh := issueToken(t, g, nil)
	req2 := httptest.NewRequest("POST", "http://example/", nil)
	req2.AddCookie(fresh)
	req2.Header.Set(g.HeaderName, token)
	if g.Verify(req2) {
		t.Fatalf("expected old token to fail against a rotated secret")
	}
}

func TestSecureFlagFollowsEnvironment(t *testing.T) {
	g := NewGuard("", "", true)
	_, secret := issueToken(t, g, nil)
	if secret == nil || !secret.Secure {
		t.Fatalf("expected Secure cookie in production mode")
	}
}
