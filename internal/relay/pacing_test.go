package relay

import (
	"context"
	"testing"
	"time"
)

func TestPacerBacksOffAndCaps(t *testing.T) {
	p := newPacer(100*time.Millisecond, 500*time.Millisecond, 0)

	steps := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond}
	for i, want := range steps {
		if got := p.failed(); got != want {
			t.Fatalf("failure %d: expected %v got %v", i+1, want, got)
		}
	}
	if got := p.idle(); got != 100*time.Millisecond {
		t.Fatalf("idle should fall back to base, got %v", got)
	}
	if got := p.failed(); got != 200*time.Millisecond {
		t.Fatalf("backoff should restart after idle, got %v", got)
	}
}

func TestPacerJitterStaysInWindow(t *testing.T) {
	p := newPacer(time.Second, time.Second, 50*time.Millisecond)
	for range 20 {
		got := p.idle()
		if got < time.Second || got >= time.Second+50*time.Millisecond {
			t.Fatalf("jittered wait %v out of range", got)
		}
	}
}

func TestSleepCtxReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); err == nil {
		t.Fatal("expected cancellation error")
	}
}
