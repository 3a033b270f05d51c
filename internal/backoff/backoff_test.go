package backoff

import (
	"context"
	"testing"
	"time"
)

func TestBackoffResetsOnNilError(t *testing.T) {
	var logged []string
	b := New("test", func(format string, args ...any) {
		logged = append(logged, format)
	}, time.Second)
	b.LogLongerThan = 0

	fired := make(chan time.Duration, 64)
	b.NewTimer = func(d time.Duration) *time.Timer {
		fired <- d
		t := time.NewTimer(0)
		return t
	}

	ctx := context.Background()
	b.BackOff(ctx, errBoom)
	b.BackOff(ctx, errBoom)
	if b.n != 2 {
		t.Fatalf("n = %d, want 2 after two failures", b.n)
	}

	b.BackOff(ctx, nil)
	if b.n != 0 {
		t.Fatalf("n = %d, want 0 after a nil error resets the schedule", b.n)
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	b := New("test", func(string, ...any) {}, 50*time.Millisecond)
	var seen []time.Duration
	b.NewTimer = func(d time.Duration) *time.Timer {
		seen = append(seen, d)
		return time.NewTimer(0)
	}

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		b.BackOff(ctx, errBoom)
	}
	for _, d := range seen {
		if d > 75*time.Millisecond { // 1.5x jitter headroom over maxBackoff
			t.Errorf("backoff duration %s exceeded max with jitter headroom", d)
		}
	}
}

func TestBackoffReturnsImmediatelyWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	b := New("test", func(string, ...any) {}, time.Second)
	b.NewTimer = func(d time.Duration) *time.Timer {
		called = true
		return time.NewTimer(d)
	}

	b.BackOff(ctx, errBoom)
	if called {
		t.Error("BackOff should take the fast path and never start a timer once ctx is done")
	}
}

var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
