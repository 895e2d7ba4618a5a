package protocol

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSupervisorBackoffSequence(t *testing.T) {
	s := &Supervisor{}

	// A cancelled context makes reconnect's sleep resolve immediately
	// regardless of the backoff duration, so the doubling/cap arithmetic
	// can be exercised without the test actually waiting.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backoff := initialBackoff
	want := []time.Duration{2, 4, 8, 16, 30, 30}
	for _, w := range want {
		backoff = s.reconnect(ctx, errors.New("boom"), backoff)
		if backoff != w*time.Second {
			t.Fatalf("got backoff %v, want %v", backoff, w*time.Second)
		}
	}
}

func TestSupervisorDialFailureTriggersReconnect(t *testing.T) {
	s := &Supervisor{
		Dial: func(ctx context.Context, url, bearer string) (WSConn, error) {
			return nil, errors.New("dial refused")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(Message) {}, nil)
		close(done)
	}()

	// Let it attempt at least once, then stop.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
