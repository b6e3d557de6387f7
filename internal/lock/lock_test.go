package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// exerciseMutualExclusion runs many goroutines on one key and checks that at
// most one is ever inside the critical section.
func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "problem-1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	if maxInside.Load() != 1 {
		t.Errorf("expected exclusive access, saw %d holders at once", maxInside.Load())
	}
}

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	exerciseMutualExclusion(t, l)
	if l.held() != 0 {
		t.Errorf("expected all entries to be cleaned up, %d left", l.held())
	}
}

func TestLocal_DifferentKeysDoNotContend(t *testing.T) {
	l := NewLocal()
	releaseA, err := l.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	releaseB, err := l.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("acquire b blocked on a: %v", err)
	}
	releaseB()
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal()
	release, _ := l.Acquire(context.Background(), "k")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	release()
	release() // second call is a no-op
	if l.held() != 0 {
		t.Errorf("expected cleanup after cancelled waiter, %d left", l.held())
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis_MutualExclusion(t *testing.T) {
	_, client := newTestRedis(t)
	exerciseMutualExclusion(t, NewRedis(client, RedisConfig{RetryDelay: time.Millisecond, MaxRetries: 1000}))
}

func TestRedis_ReleaseDeletesKey(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedis(client, RedisConfig{})

	release, err := l.Acquire(context.Background(), "p1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !mr.Exists("landscape:lock:p1") {
		t.Fatal("expected lock key to exist")
	}
	if ttl := mr.TTL("landscape:lock:p1"); ttl != DefaultTTL {
		t.Errorf("expected ttl %v, got %v", DefaultTTL, ttl)
	}

	release()
	if mr.Exists("landscape:lock:p1") {
		t.Error("expected lock key to be deleted")
	}
}

func TestRedis_ReleaseDoesNotStealForeignLock(t *testing.T) {
	mr, client := newTestRedis(t)
	l := NewRedis(client, RedisConfig{})

	release, err := l.Acquire(context.Background(), "p1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Simulate expiry followed by another holder taking over.
	mr.Del("landscape:lock:p1")
	if err := mr.Set("landscape:lock:p1", "someone-else"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	release()
	if got, _ := mr.Get("landscape:lock:p1"); got != "someone-else" {
		t.Errorf("release removed a lock it did not own, value now %q", got)
	}
}

func TestRedis_GivesUp(t *testing.T) {
	mr, client := newTestRedis(t)
	if err := mr.Set("landscape:lock:busy", "holder"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	l := NewRedis(client, RedisConfig{RetryDelay: time.Millisecond, MaxRetries: 3})
	if _, err := l.Acquire(context.Background(), "busy"); !errors.Is(err, ErrNotAcquired) {
		t.Errorf("expected ErrNotAcquired, got %v", err)
	}
}
