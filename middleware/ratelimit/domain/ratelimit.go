package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http nem de
// infraestrutura concreta (Redis etc).

import (
	"context"
	"errors"
	"time"
)

type Key string

// Bucket é uma política nomeada de janela deslizante: no máximo Limit
// admissões por Window. Os números são política, não arquitetura — vêm da
// configuração.
type Bucket struct {
	Name   string
	Limit  int
	Window time.Duration
}

// ErrBackendUnavailable indica que o counter store não pôde ser consultado.
// Em produção o pipeline traduz isso em 503 (fail closed).
var ErrBackendUnavailable = errors.New("rate limit counter store unavailable")

// CounterStore incrementa atomicamente o contador da janela de bucket:key e
// devolve o count resultante e o instante em que a janela expira.
//
// Check-then-increment precisa ser atômico no store — ele é o único ponto de
// serialização entre instâncias concorrentes do gateway.
type CounterStore interface {
	Incr(ctx context.Context, bucket Bucket, key Key) (count int64, resetAt time.Time, err error)
}

// Decision é o resultado de um check-and-increment.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter deriva o valor do header Retry-After: max(0, ceil(resetAt-now)).
func (d Decision) RetryAfter(now time.Time) time.Duration {
	delta := d.ResetAt.Sub(now)
	if delta <= 0 {
		return 0
	}
	secs := (delta + time.Second - 1) / time.Second // ceil em segundos inteiros
	return secs * time.Second
}
