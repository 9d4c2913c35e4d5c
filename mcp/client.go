// Package mcp é o cliente do serviço upstream de cupons/campanhas.
//
// O upstream fala um JSON-RPC simplificado: POST único com
// {"method":"tools/call","params":{"name":<tool>,"arguments":{...}}} e
// bearer token. Erros não-2xx viram *Error com o status original.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Error é a falha tipada do upstream. O mapeamento para HTTP repassa Status
// e Details como vieram.
type Error struct {
	Status  int
	Message string
	Details json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("mcp request failed (%d): %s", e.Status, e.Message)
}

type request struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments,omitempty"`
	} `json:"params"`
}

type Client struct {
	baseURL string
	token   string

	httpc    *http.Client
	limiter  *rate.Limiter
	cache    Cache
	cacheTTL time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// WithThrottle limita as chamadas de saída (token bucket). rps <= 0 desliga.
func WithThrottle(rps float64, burst int) Option {
	return func(cl *Client) {
		if rps > 0 {
			if burst <= 0 {
				burst = 1
			}
			cl.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithCache liga o cache de leitura com o TTL dado.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) call(ctx context.Context, tool string, args map[string]any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body request
	body.Method = "tools/call"
	body.Params.Name = tool
	if len(args) > 0 {
		body.Params.Arguments = args
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(resp)
	}
	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func upstreamError(resp *http.Response) error {
	e := &Error{Status: resp.StatusCode, Message: resp.Status}

	text, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(text) > 0 {
		e.Message = string(text)
		if json.Valid(text) {
			e.Details = json.RawMessage(text)
		}
	}
	return e
}

// cachedCall tenta o cache antes do upstream e grava o resultado no miss.
func cachedCall[T any](ctx context.Context, c *Client, cacheKey, tool string, args map[string]any) (*T, error) {
	if c.cache != nil {
		if raw, ok := c.cache.Get(ctx, cacheKey); ok {
			var out T
			if err := json.Unmarshal(raw, &out); err == nil {
				return &out, nil
			}
		}
	}

	var out T
	if err := c.call(ctx, tool, args, &out); err != nil {
		return nil, err
	}

	if c.cache != nil {
		if raw, err := json.Marshal(out); err == nil {
			c.cache.Set(ctx, cacheKey, raw, c.cacheTTL)
		}
	}
	return &out, nil
}

const (
	cacheKeyMyCoupons        = "my-coupons"
	cacheKeyAvailableCoupons = "available-coupons"
)

// MyCoupons lista os cupons já resgatados do usuário (tool my-coupons).
func (c *Client) MyCoupons(ctx context.Context) (*CouponList, error) {
	return cachedCall[CouponList](ctx, c, cacheKeyMyCoupons, "my-coupons", nil)
}

// AvailableCoupons lista os cupons disponíveis (tool available-coupons).
func (c *Client) AvailableCoupons(ctx context.Context) (*CouponList, error) {
	return cachedCall[CouponList](ctx, c, cacheKeyAvailableCoupons, "available-coupons", nil)
}

// Campaigns consulta o calendário de campanhas (tool campaign-calender —
// [sic], nome da tool no upstream). date opcional em yyyy-MM-dd.
func (c *Client) Campaigns(ctx context.Context, date string) (*CampaignList, error) {
	var args map[string]any
	if date != "" {
		args = map[string]any{"specifiedDate": date}
	}
	return cachedCall[CampaignList](ctx, c, "campaigns:"+date, "campaign-calender", args)
}

// AutoClaim resgata em lote todos os cupons disponíveis (tool
// auto-bind-coupons). O upstream não tem resgate individual. Invalida o
// cache de cupons.
func (c *Client) AutoClaim(ctx context.Context) (*AutoClaimResult, error) {
	var out AutoClaimResult
	if err := c.call(ctx, "auto-bind-coupons", nil, &out); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Delete(ctx, cacheKeyMyCoupons, cacheKeyAvailableCoupons)
	}
	return &out, nil
}

// TimeInfo devolve o relógio do upstream (tool now-time-info).
func (c *Client) TimeInfo(ctx context.Context) (*TimeInfo, error) {
	var out TimeInfo
	if err := c.call(ctx, "now-time-info", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
