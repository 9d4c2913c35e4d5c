package infra

import (
	"context"
	"testing"
	"time"

	"mcd-dashboard/middleware/ratelimit/domain"
)

func TestMemoryCounterStore_IncrCounts(t *testing.T) {
	s := NewMemoryCounterStore()
	bucket := domain.Bucket{Name: "api", Limit: 100, Window: time.Minute}

	for want := int64(1); want <= 3; want++ {
		count, resetAt, err := s.Incr(context.Background(), bucket, "ip:1.2.3.4")
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if count != want {
			t.Fatalf("expected count %d, got %d", want, count)
		}
		if !resetAt.After(time.Now()) {
			t.Fatalf("expected resetAt in the future")
		}
	}
}

func TestMemoryCounterStore_WindowIsStable(t *testing.T) {
	s := NewMemoryCounterStore()
	bucket := domain.Bucket{Name: "api", Limit: 100, Window: time.Minute}

	_, first, err := s.Incr(context.Background(), bucket, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	_, second, err := s.Incr(context.Background(), bucket, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("resetAt must not move within the window: %v != %v", first, second)
	}
}

func TestMemoryCounterStore_ExpiredWindowRestarts(t *testing.T) {
	s := NewMemoryCounterStore()
	bucket := domain.Bucket{Name: "api", Limit: 100, Window: 10 * time.Millisecond}

	if count, _, _ := s.Incr(context.Background(), bucket, "ip:1.2.3.4"); count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
	if count, _, _ := s.Incr(context.Background(), bucket, "ip:1.2.3.4"); count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}

	time.Sleep(20 * time.Millisecond)

	if count, _, _ := s.Incr(context.Background(), bucket, "ip:1.2.3.4"); count != 1 {
		t.Fatalf("expected fresh window after expiry, got count %d", count)
	}
}

func TestMemoryCounterStore_BucketsAreIsolated(t *testing.T) {
	s := NewMemoryCounterStore()
	api := domain.Bucket{Name: "api", Limit: 100, Window: time.Minute}
	write := domain.Bucket{Name: "write", Limit: 10, Window: time.Minute}

	s.Incr(context.Background(), api, "user:1")
	s.Incr(context.Background(), api, "user:1")
	count, _, _ := s.Incr(context.Background(), write, "user:1")
	if count != 1 {
		t.Fatalf("expected buckets to count independently, got %d", count)
	}
}

func TestMemoryCounterStore_CleanupDropsExpired(t *testing.T) {
	s := NewMemoryCounterStore()
	short := domain.Bucket{Name: "api", Limit: 100, Window: 5 * time.Millisecond}
	long := domain.Bucket{Name: "write", Limit: 10, Window: time.Hour}

	s.Incr(context.Background(), short, "ip:a")
	s.Incr(context.Background(), long, "ip:b")

	time.Sleep(10 * time.Millisecond)
	s.Cleanup()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries["api:ip:a"]; ok {
		t.Fatalf("expected expired entry to be removed")
	}
	if _, ok := s.entries["write:ip:b"]; !ok {
		t.Fatalf("expected live entry to survive cleanup")
	}
}
