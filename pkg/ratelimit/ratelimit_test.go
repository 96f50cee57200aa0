package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(now *time.Time) *Limiter {
	l := NewLimiter()
	l.now = func() time.Time { return *now }
	return l
}

func TestLimiter_BudgetEnforced(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	l.Configure("airbnb", Limits{Window: time.Second, Budget: 3})

	for i := 0; i < 3; i++ {
		if err := l.Acquire("airbnb"); err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
	}
	if err := l.Acquire("airbnb"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	l.Configure("airbnb", Limits{Window: time.Second, Budget: 2})

	if err := l.Acquire("airbnb"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	now = now.Add(600 * time.Millisecond)
	if err := l.Acquire("airbnb"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := l.Acquire("airbnb"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// First admission slides out; one slot frees up, not both.
	now = now.Add(500 * time.Millisecond)
	if err := l.Acquire("airbnb"); err != nil {
		t.Fatalf("acquire after slide failed: %v", err)
	}
	if err := l.Acquire("airbnb"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestLimiter_KeysIndependent(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	l.Configure("airbnb", Limits{Window: time.Second, Budget: 1})
	l.Configure("vrbo", Limits{Window: time.Second, Budget: 1})

	if err := l.Acquire("airbnb"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := l.Acquire("vrbo"); err != nil {
		t.Fatalf("acquire on other key failed: %v", err)
	}
}

func TestLimiter_LazyConfigureKeepsAdmissions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newTestLimiter(&now)
	limits := Limits{Window: time.Second, Budget: 1}

	// Two workers race to configure the same key lazily; the second
	// configuration must not erase the admission the first worker drew.
	l.ConfigureIfAbsent("airbnb", limits)
	if err := l.Acquire("airbnb"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	l.ConfigureIfAbsent("airbnb", limits)
	if err := l.Acquire("airbnb"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after reconfigure, got %v", err)
	}
}

func TestLimiter_UnconfiguredKey(t *testing.T) {
	l := NewLimiter()
	if err := l.Acquire("unknown"); err == nil {
		t.Fatal("expected error for unconfigured key")
	}
}

func TestLimiter_ConcurrentAcquire(t *testing.T) {
	l := NewLimiter()
	l.Configure("airbnb", Limits{Window: time.Minute, Budget: 10})

	const n = 50
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = l.Acquire("airbnb")
		}(i)
	}
	wg.Wait()

	var admitted int
	for _, err := range results {
		if err == nil {
			admitted++
		} else if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if admitted != 10 {
		t.Fatalf("expected exactly 10 admitted, got %d", admitted)
	}
}
