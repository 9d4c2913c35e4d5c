package infra

import (
	"context"
	"sync"
	"time"

	"mcd-dashboard/middleware/ratelimit/domain"
)

// MemoryCounterStore é uma implementação de counter store em memória com
// cache por chave e limpeza periódica.
//
// Serve para dev single-instance e testes; não coordena entre instâncias.
type MemoryCounterStore struct {
	mu           sync.Mutex
	entries      map[string]*memEntry
	cleanupEvery time.Duration
}

type memEntry struct {
	count   int64
	resetAt time.Time
}

type MemoryCounterOption func(*MemoryCounterStore)

func WithCleanupEvery(d time.Duration) MemoryCounterOption {
	return func(s *MemoryCounterStore) { s.cleanupEvery = d }
}

func NewMemoryCounterStore(opts ...MemoryCounterOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		entries:      make(map[string]*memEntry),
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryCounterStore) Incr(_ context.Context, bucket domain.Bucket, key domain.Key) (int64, time.Time, error) {
	k := bucket.Name + ":" + string(key)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[k]
	if !ok || !ent.resetAt.After(now) {
		ent = &memEntry{count: 0, resetAt: now.Add(bucket.Window)}
		s.entries[k] = ent
	}
	ent.count++
	return ent.count, ent.resetAt, nil
}

func (s *MemoryCounterStore) Cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !ent.resetAt.After(now) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa janelas expiradas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryCounterStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
