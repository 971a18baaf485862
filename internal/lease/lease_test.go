package lease

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewKey_UsesLocalDate(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	provider := uuid.MustParse("00000000-0000-0000-0000-0000000000a1")

	// 2026-01-05 20:00 UTC is already 2026-01-06 in Tokyo.
	k := NewKey(provider, time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC), loc)
	if got, want := k.String(), provider.String()+":2026-01-06"; got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "k")
			if err != nil {
				t.Errorf("Acquire error: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxInside)
	}
	if m.Len() != 0 {
		t.Fatalf("Len = %d, want 0 after all releases", m.Len())
	}
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := m.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("Acquire a error: %v", err)
	}
	defer releaseA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	releaseB, err := m.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("Acquire b error: %v", err)
	}
	releaseB()
}

func TestKeyedMutex_ContextCancelWhileWaiting(t *testing.T) {
	m := NewKeyedMutex()

	release, err := m.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want %v", err, context.DeadlineExceeded)
	}

	release()
	release()
	if m.Len() != 0 {
		t.Fatalf("Len = %d, want 0", m.Len())
	}
}

func TestHold_IsReentrantWithinContext(t *testing.T) {
	m := NewKeyedMutex()

	ctx, release, err := Hold(context.Background(), m, "k")
	if err != nil {
		t.Fatalf("Hold error: %v", err)
	}
	defer release()
	if !Held(ctx, "k") {
		t.Fatalf("Held = false, want true")
	}

	inner, innerRelease, err := Hold(ctx, m, "k")
	if err != nil {
		t.Fatalf("nested Hold error: %v", err)
	}
	innerRelease()
	if !Held(inner, "k") {
		t.Fatalf("nested context lost the held marker")
	}
	if Held(context.Background(), "k") {
		t.Fatalf("background context must not hold the key")
	}
}
