package application

import (
	"context"
	"fmt"
	"time"

	"mcd-dashboard/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas devolve uma decisão.
//
// Política de degradação quando o counter store está ausente ou fora do ar:
//   - FailOpen=false (produção): Check falha com ErrBackendUnavailable.
//     Rate limiter aberto em produção é risco de segurança/custo.
//   - FailOpen=true (dev): devolve uma decisão sempre-permitida com
//     remaining = limit-1, para não travar ambiente local sem Redis.
type Service struct {
	Store    domain.CounterStore
	FailOpen bool
}

func (s Service) Check(ctx context.Context, bucket domain.Bucket, key domain.Key) (domain.Decision, error) {
	if s.Store == nil {
		if s.FailOpen {
			return openDecision(bucket), nil
		}
		return domain.Decision{}, domain.ErrBackendUnavailable
	}

	count, resetAt, err := s.Store.Incr(ctx, bucket, key)
	if err != nil {
		if s.FailOpen {
			return openDecision(bucket), nil
		}
		return domain.Decision{}, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	dec := domain.Decision{
		Limit:   bucket.Limit,
		ResetAt: resetAt,
	}
	if count <= int64(bucket.Limit) {
		dec.Allowed = true
		dec.Remaining = bucket.Limit - int(count)
	}
	return dec, nil
}

// openDecision é o stub do fail-open: sempre permite e reporta a janela cheia
// menos um. Não conta de verdade — contagem real em dev é o store de memória.
func openDecision(b domain.Bucket) domain.Decision {
	limit := b.Limit
	if limit <= 0 {
		limit = 100
	}
	window := b.Window
	if window <= 0 {
		window = time.Minute
	}
	return domain.Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - 1,
		ResetAt:   time.Now().Add(window),
	}
}
