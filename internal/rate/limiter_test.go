package rate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newMemoryLimiter(t *testing.T, limit int, clock *fakeClock) (*Limiter, *MemoryStore) {
	t.Helper()
	store, err := NewMemoryStore(MemoryStoreConfig{Now: clock.Now})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	t.Cleanup(store.Close)
	l, err := New(store, Config{Limit: limit, Now: clock.Now})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return l, store
}

func TestLimiterAllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)}
	l, store := newMemoryLimiter(t, DevelopmentLimit, clock)

	for i := 1; i <= DevelopmentLimit; i++ {
		if err := l.Allow(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("request %d rejected: %v", i, err)
		}
	}
	if err := l.Allow(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("request %d: expected ErrRateLimited, got %v", DevelopmentLimit+1, err)
	}
	for i := 0; i < 5; i++ {
		if err := l.Allow(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("expected continued rejection, got %v", err)
		}
	}

	count, _, found, err := store.Get(ctx, l.key("10.0.0.1", clock.Now()))
	if err != nil || !found {
		t.Fatalf("counter lookup: found=%v err=%v", found, err)
	}
	if count != DevelopmentLimit+1 {
		t.Fatalf("counter should stop at limit+1, got %d", count)
	}

	if err := l.Allow(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("other client should be unaffected: %v", err)
	}
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	l, store := newMemoryLimiter(t, 2, clock)

	for i := 0; i < 2; i++ {
		if err := l.Allow(ctx, "c"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, "c"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}

	clock.Advance(DefaultBucket)
	if err := l.Allow(ctx, "c"); err != nil {
		t.Fatalf("request in new window rejected: %v", err)
	}
	count, _, _, _ := store.Get(ctx, l.key("c", clock.Now()))
	if count != 1 {
		t.Fatalf("expected fresh counter of 1, got %d", count)
	}
}

func TestLimiterKeepsRemainingTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	l, store := newMemoryLimiter(t, 10, clock)

	if err := l.Allow(ctx, "c"); err != nil {
		t.Fatalf("allow: %v", err)
	}
	clock.Advance(20 * time.Second)
	if err := l.Allow(ctx, "c"); err != nil {
		t.Fatalf("allow: %v", err)
	}
	_, ttl, found, err := store.Get(ctx, l.key("c", clock.Now()))
	if err != nil || !found {
		t.Fatalf("counter lookup: found=%v err=%v", found, err)
	}
	if ttl > DefaultWindow-20*time.Second {
		t.Fatalf("ttl was extended: %v", ttl)
	}

	clock.Advance(40 * time.Second)
	if _, _, found, _ := store.Get(ctx, l.key("c", clock.Now().Add(-time.Minute))); found {
		t.Fatal("counter should have expired after the window")
	}
}

func TestLimiterManyClients(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)}
	l, store := newMemoryLimiter(t, 3, clock)

	const clients = 10000
	allowed := make([]int, clients)
	for round := 0; round < 5; round++ {
		for c := 0; c < clients; c++ {
			err := l.Allow(ctx, fmt.Sprintf("10.%d.%d.%d", c>>16, (c>>8)&0xff, c&0xff))
			switch {
			case err == nil:
				allowed[c]++
			case !errors.Is(err, ErrRateLimited):
				t.Fatalf("client %d round %d: %v", c, round, err)
			}
		}
	}
	for c, n := range allowed {
		if n != 3 {
			t.Fatalf("client %d allowed %d requests, want 3", c, n)
		}
	}

	retained := 0
	for c := 0; c < clients; c++ {
		addr := fmt.Sprintf("10.%d.%d.%d", c>>16, (c>>8)&0xff, c&0xff)
		if count, _, found, _ := store.Get(ctx, l.key(addr, clock.Now())); found && count == 4 {
			retained++
		}
	}
	if retained != clients {
		t.Fatalf("counters retained %d of %d", retained, clients)
	}
}

func burst(t *testing.T, l *Limiter, n int) int64 {
	t.Helper()
	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
		start   = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := l.Allow(context.Background(), "192.0.2.7")
			if err == nil {
				allowed.Add(1)
			} else if !errors.Is(err, ErrRateLimited) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	return allowed.Load()
}

func TestLimiterConcurrentBurst(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)}
	l, store := newMemoryLimiter(t, DevelopmentLimit, clock)

	if got := burst(t, l, 200); got != DevelopmentLimit {
		t.Fatalf("burst allowed %d requests, want %d", got, DevelopmentLimit)
	}
	count, _, _, _ := store.Get(context.Background(), l.key("192.0.2.7", clock.Now()))
	if count != DevelopmentLimit+1 {
		t.Fatalf("counter = %d, want %d", count, DevelopmentLimit+1)
	}
}

type brokenStore struct{}

func (brokenStore) Increment(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, errors.New("boom")
}

func TestLimiterFailurePolicy(t *testing.T) {
	ctx := context.Background()

	open, err := New(brokenStore{}, Config{Limit: 1, FailOpen: true})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if err := open.Allow(ctx, "c"); err != nil {
		t.Fatalf("fail-open limiter rejected: %v", err)
	}

	closed, err := New(brokenStore{}, Config{Limit: 1})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if err := closed.Allow(ctx, "c"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(nil, Config{Limit: 1}); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := New(brokenStore{}, Config{}); err == nil {
		t.Fatal("expected error for zero limit")
	}
	if _, err := New(brokenStore{}, Config{Limit: 1, Window: -time.Second}); err == nil {
		t.Fatal("expected error for negative window")
	}
}

func TestRedisStoreLimiter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	l, err := New(NewRedisStore(client), Config{Limit: 3, Now: clock.Now})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, "1.2.3.4"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, "1.2.3.4"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	key := l.key("1.2.3.4", clock.Now())
	if got, _ := mr.Get(key); got != "4" {
		t.Fatalf("expected counter 4, got %q", got)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > DefaultWindow {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(DefaultWindow)
	if err := l.Allow(ctx, "1.2.3.4"); err != nil {
		t.Fatalf("request after expiry rejected: %v", err)
	}
	if got, _ := mr.Get(key); got != "1" {
		t.Fatalf("expected fresh counter, got %q", got)
	}
}

func TestRedisStoreConcurrentBurst(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{t: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	l, err := New(NewRedisStore(client), Config{Limit: 5, Now: clock.Now})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if got := burst(t, l, 50); got != 5 {
		t.Fatalf("burst allowed %d requests, want 5", got)
	}
	if got, _ := mr.Get(l.key("192.0.2.7", clock.Now())); got != "6" {
		t.Fatalf("expected counter 6, got %q", got)
	}
}

func TestRedisStoreRearmsMissingExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	if err := mr.Set("k", "2"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	count, err := store.Increment(ctx, "k", 10, DefaultWindow)
	if err != nil || count != 3 {
		t.Fatalf("Increment = %d, %v", count, err)
	}
	if ttl := mr.TTL("k"); ttl <= 0 {
		t.Fatalf("expiry not armed: %v", ttl)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	l, err := New(NewRedisStore(client), Config{Limit: 1})
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	if err := l.Allow(context.Background(), "c"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
