package stopper

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGoAndStop(t *testing.T) {
	ctx := WithContext(context.Background())
	started := make(chan struct{})
	ctx.Go(func() error {
		close(started)
		<-ctx.Stopping()
		return nil
	})
	<-started
	ctx.Stop(time.Second)
}

func TestErrCancelsSiblings(t *testing.T) {
	ctx := WithContext(context.Background())
	sentinel := errors.New("boom")
	ctx.Go(func() error { return sentinel })
	ctx.Go(func() error {
		<-ctx.Done()
		return nil
	})
	ctx.Stop(time.Second)
	if !errors.Is(ctx.Err(), sentinel) {
		t.Fatalf("expected sentinel error, got %v", ctx.Err())
	}
}

func TestStopDeadlineForcesCancel(t *testing.T) {
	ctx := WithContext(context.Background())
	ctx.Go(func() error {
		<-ctx.Done()
		return nil
	})
	start := time.Now()
	ctx.Stop(10 * time.Millisecond)
	if time.Since(start) > time.Second {
		t.Fatal("Stop should have forced cancellation quickly")
	}
}

func TestStopIdempotent(t *testing.T) {
	ctx := WithContext(context.Background())
	ctx.Stop(time.Second)
	ctx.Stop(time.Second)
}
