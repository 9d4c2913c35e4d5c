package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"mcd-dashboard/config"
	"mcd-dashboard/middleware/ratelimit/application"
	"mcd-dashboard/middleware/ratelimit/domain"
	"mcd-dashboard/middleware/ratelimit/infra"
	"mcd-dashboard/security/cors"
	"mcd-dashboard/security/csrf"
	"mcd-dashboard/security/events"
	"mcd-dashboard/security/headers"
	"mcd-dashboard/security/identity"
)

const testOrigin = "http://localhost:3000"

func newPipeline(env config.Environment, svc application.Service, logs *events.Logger) *Pipeline {
	if logs == nil {
		logs = events.New(nil)
	}
	return &Pipeline{
		Env:      env,
		Headers:  headers.NewInjector(env),
		Cors:     cors.NewPolicy([]string{testOrigin}, "X-CSRF-Token"),
		Resolver: &identity.Resolver{Secret: []byte("test-secret"), CookieName: "session-token"},
		Csrf:     csrf.NewGuard("", "", false),
		Limiter:  svc,
		Events:   logs,
		Buckets: map[string]domain.Bucket{
			"api":   {Name: "api", Limit: 100, Window: time.Minute},
			"write": {Name: "write", Limit: 2, Window: time.Minute},
		},
		MaxBodyBytes: 1024,
	}
}

func memService() application.Service {
	return application.Service{Store: infra.NewMemoryCounterStore()}
}

func observedEvents(t *testing.T) (*events.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	return events.New(zap.New(core)), logs
}

// login devolve o header Cookie de uma sessão válida.
func login(t *testing.T, p *Pipeline, userID string) string {
	t.Helper()
	token, err := p.Resolver.Issue(userID, time.Minute)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return p.Resolver.CookieName + "=" + token
}

// csrfPair emite um token e devolve (token, cookie do secret).
func csrfPair(t *testing.T, p *Pipeline) (string, *http.Cookie) {
	t.Helper()
	w := httptest.NewRecorder()
	token, err := p.Csrf.Issue(w, httptest.NewRequest("GET", "/api/csrf-token", nil))
	if err != nil {
		t.Fatalf("issue csrf: %v", err)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == p.Csrf.CookieName {
			return token, c
		}
	}
	t.Fatalf("no csrf secret cookie issued")
	return "", nil
}

func TestWrap_SecurityHeadersOnEveryExitPath(t *testing.T) {
	p := newPipeline(config.Production, memService(), nil)
	handler := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RouteOptions{Protected: true})

	// 401 (sem sessão) e 200 (autenticado) devem sair com o mesmo conjunto
	anon := httptest.NewRecorder()
	handler.ServeHTTP(anon, httptest.NewRequest("GET", "/api/coupons", nil))
	if anon.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", anon.Code)
	}

	authReq := httptest.NewRequest("GET", "/api/coupons", nil)
	authReq.Header.Set("Cookie", login(t, p, "user-1"))
	auth := httptest.NewRecorder()
	handler.ServeHTTP(auth, authReq)
	if auth.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", auth.Code)
	}

	for _, name := range headers.List() {
		a, b := anon.Header().Get(name), auth.Header().Get(name)
		if a == "" || a != b {
			t.Fatalf("%s differs between exit paths: %q vs %q", name, a, b)
		}
	}
	if anon.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header on early exit")
	}
}

func TestWrap_UnauthorizedEventCarriesOnlyMethodAndPathname(t *testing.T) {
	logs, observed := observedEvents(t)
	p := newPipeline(config.Production, memService(), logs)
	handler := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), RouteOptions{Protected: true})

	// query string com segredo não pode aparecer no evento
	req := httptest.NewRequest("GET", "/api/coupons?token=super-secret", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := observed.FilterMessage("security_event").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 security event, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["type"] != "unauthorized_api_access" {
		t.Fatalf("unexpected event type %v", ctx["type"])
	}
	details, ok := ctx["details"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected details dict, got %T", ctx["details"])
	}
	if len(details) != 2 || details["method"] != "GET" || details["pathname"] != "/api/coupons" {
		t.Fatalf("details must carry only method+pathname, got %v", details)
	}
	for _, v := range details {
		if s, ok := v.(string); ok && strings.Contains(s, "super-secret") {
			t.Fatalf("query string leaked into event: %v", details)
		}
	}
}

func TestWrap_CsrfRequiredForMutatingVerbs(t *testing.T) {
	p := newPipeline(config.Development, memService(), nil)
	handler := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RouteOptions{Bucket: "write"})

	// POST sem token cai no estágio de CSRF
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/coupons/claim", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", w.Code)
	}

	// GET nunca exige token
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, httptest.NewRequest("GET", "/api/coupons", nil))
	if w2.Code != http.StatusOK {
		t.Fatalf("expected GET to skip CSRF, got %d", w2.Code)
	}

	// POST com par token+cookie passa
	token, secret := csrfPair(t, p)
	req := httptest.NewRequest("POST", "/api/coupons/claim", nil)
	req.AddCookie(secret)
	req.Header.Set(p.Csrf.HeaderName, token)
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, req)
	if w3.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", w3.Code)
	}
}

func TestWrap_CsrfFailureDoesNotConsumeQuota(t *testing.T) {
	p := newPipeline(config.Development, memService(), nil)
	handler := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RouteOptions{Bucket: "write"})

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/api/coupons/claim", nil))
		if w.Code != http.StatusForbidden {
			t.Fatalf("request %d: expected 403, got %d", i, w.Code)
		}
	}

	token, secret := csrfPair(t, p)
	req := httptest.NewRequest("POST", "/api/coupons/claim", nil)
	req.AddCookie(secret)
	req.Header.Set(p.Csrf.HeaderName, token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected quota untouched by CSRF rejections, got %d", w.Code)
	}
}

func TestWrap_BodyTooLarge(t *testing.T) {
	p := newPipeline(config.Development, memService(), nil)
	handler := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RouteOptions{})

	req := httptest.NewRequest("POST", "/api/coupons/claim", strings.NewReader(strings.Repeat("x", 10)))
	req.Header.Set("Content-Length", strconv.Itoa(4096))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	var body bodyTooLargeBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.MaxSize != 1024 || body.ReceivedSize != 4096 {
		t.Fatalf("unexpected sizes %+v", body)
	}
	if !strings.Contains(body.Message, "1KB") {
		t.Fatalf("expected max size in KB in the message, got %q", body.Message)
	}
}

func TestWrap_RateLimitDeniesOverQuota(t *testing.T) {
	p := newPipeline(config.Development, memService(), nil)
	handler := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RouteOptions{Bucket: "write"})
	token, secret := csrfPair(t, p)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/coupons/claim", nil)
		req.AddCookie(secret)
		req.Header.Set(p.Csrf.HeaderName, token)
		req.Header.Set("X-Real-IP", "198.51.100.7")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := post(); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	w := post()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 over quota, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After on 429")
	}
}

func TestWrap_FailClosedInProduction(t *testing.T) {
	logs, observed := observedEvents(t)
	p := newPipeline(config.Production, application.Service{Store: nil, FailOpen: false}, logs)
	handler := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RouteOptions{})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/coupons", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 fail closed, got %d", w.Code)
	}
	if observed.FilterMessage("backend_unavailable").Len() != 1 {
		t.Fatalf("expected backend_unavailable event")
	}
}

func TestWrap_FailOpenInDevelopment(t *testing.T) {
	p := newPipeline(config.Development, application.Service{Store: nil, FailOpen: true}, nil)
	handler := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RouteOptions{})

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/coupons", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected fail open to allow, got %d", w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != "99" {
			t.Fatalf("expected stub remaining 99, got %q", got)
		}
	}
}

func TestWrap_Preflight(t *testing.T) {
	logs, observed := observedEvents(t)
	p := newPipeline(config.Production, memService(), logs)
	handler := p.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run on preflight")
	}), RouteOptions{Protected: true})

	ok := httptest.NewRequest("OPTIONS", "/api/coupons", nil)
	ok.Header.Set("Origin", testOrigin)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, ok)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for allowed origin, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Fatalf("expected origin echo, got %q", got)
	}

	bad := httptest.NewRequest("OPTIONS", "/api/coupons", nil)
	bad.Header.Set("Origin", "https://evil.example.com")
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, bad)
	if w2.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for blocked origin, got %d", w2.Code)
	}

	entries := observed.FilterMessage("security_event").All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one blocked_origin event, got %d", len(entries))
	}
	if entries[0].ContextMap()["type"] != "blocked_origin" {
		t.Fatalf("unexpected event type %v", entries[0].ContextMap()["type"])
	}
}

func TestWrap_UnknownBucketFallsBackToAPI(t *testing.T) {
	p := newPipeline(config.Development, memService(), nil)
	if got := p.bucket("inexistente"); got.Name != "api" {
		t.Fatalf("expected fallback to api bucket, got %q", got.Name)
	}
	if got := p.bucket(""); got.Name != "api" {
		t.Fatalf("expected empty name to map to api bucket, got %q", got.Name)
	}
}
