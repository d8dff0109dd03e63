package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

func TestSpacerFirstCallDoesNotWait(t *testing.T) {
	fake := clocktesting.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	spacer := NewSpacer(fake, 1100*time.Millisecond)

	if err := spacer.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if fake.HasWaiters() {
		t.Fatalf("first call should not wait")
	}
	spacer.Done(context.Background())
}

func TestSpacerMeasuresFromCompletion(t *testing.T) {
	fake := clocktesting.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	spacer := NewSpacer(fake, time.Second)
	ctx := context.Background()

	if err := spacer.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	// the call itself takes longer than the interval
	fake.Step(5 * time.Second)
	spacer.Done(ctx)

	done := make(chan error, 1)
	go func() { done <- spacer.Wait(ctx) }()

	waitForWaiter(t, fake)
	fake.Step(400 * time.Millisecond)
	select {
	case <-done:
		t.Fatalf("Wait() returned before the interval elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	fake.Step(600 * time.Millisecond)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait() did not return after the interval")
	}
	spacer.Done(ctx)
}

func TestSpacerSkipsWaitWhenIntervalPassed(t *testing.T) {
	fake := clocktesting.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	spacer := NewSpacer(fake, time.Second)
	ctx := context.Background()

	_ = spacer.Wait(ctx)
	spacer.Done(ctx)
	fake.Step(2 * time.Second)

	if err := spacer.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if fake.HasWaiters() {
		t.Fatalf("Wait() should not start a timer after the interval")
	}
	spacer.Done(ctx)
}

func TestSpacerWaitHonoursCancellation(t *testing.T) {
	fake := clocktesting.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	spacer := NewSpacer(fake, time.Minute)

	_ = spacer.Wait(context.Background())
	spacer.Done(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- spacer.Wait(ctx) }()
	waitForWaiter(t, fake)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Wait() ignored cancellation")
	}

	// the slot was released, so a fresh caller can proceed once time passes
	fake.Step(time.Minute)
	if err := spacer.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() after cancel error = %v", err)
	}
}

func waitForWaiter(t *testing.T, fake *clocktesting.FakeClock) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !fake.HasWaiters() {
		if time.Now().After(deadline) {
			t.Fatalf("no timer was started")
		}
		time.Sleep(time.Millisecond)
	}
}
