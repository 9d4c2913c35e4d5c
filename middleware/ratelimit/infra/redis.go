package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mcd-dashboard/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// incrScript faz o check-then-increment atômico: INCR + PEXPIRE na primeira
// admissão da janela, devolvendo o count e o PTTL restante. Rodar como script
// evita a corrida entre INCR e EXPIRE sob requests concorrentes.
var incrScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {c, ttl}
`)

// RedisCounterStore é o counter store compartilhado entre instâncias do
// gateway. Uma chave por bucket:key, expirando junto com a janela.
type RedisCounterStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisCounterOption func(*RedisCounterStore)

func WithCounterPrefix(prefix string) RedisCounterOption {
	return func(s *RedisCounterStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func NewRedisCounterStore(rdb *redis.Client, opts ...RedisCounterOption) *RedisCounterStore {
	s := &RedisCounterStore{
		rdb:    rdb,
		prefix: "ratelimit",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCounterStore) Incr(ctx context.Context, bucket domain.Bucket, key domain.Key) (int64, time.Time, error) {
	k := fmt.Sprintf("%s:%s:%s", s.prefix, strings.ToLower(bucket.Name), key)

	res, err := incrScript.Run(ctx, s.rdb, []string{k}, bucket.Window.Milliseconds()).Slice()
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected script reply: %v", res)
	}

	count, ok := res[0].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unexpected count reply: %T", res[0])
	}
	ttlMs, ok := res[1].(int64)
	if !ok || ttlMs < 0 {
		// PTTL -1/-2 não deveria acontecer logo após o PEXPIRE; usa a janela cheia.
		ttlMs = bucket.Window.Milliseconds()
	}

	return count, time.Now().Add(time.Duration(ttlMs) * time.Millisecond), nil
}
