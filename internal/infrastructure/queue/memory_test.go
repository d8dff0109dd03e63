package queue

import (
	"context"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"partnermap/internal/domain/partner"
	"partnermap/internal/ports"
)

func TestMemoryQueueDeliversInOrder(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range []string{"a", "b"} {
		if err := q.Publish(ctx, ports.JobMessage{Kind: partner.JobKindImport, JobID: id}); err != nil {
			t.Fatalf("Publish(%s) error = %v", id, err)
		}
	}

	var got []string
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, func(_ context.Context, d ports.Delivery) {
			got = append(got, d.Message().JobID)
			_ = d.Ack()
			if len(got) == 2 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Consume() did not return")
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("delivered = %v", got)
	}
}

func TestMemoryQueueNakRedelivers(t *testing.T) {
	q := NewMemoryQueue(1, WithRedeliveryDelay(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Publish(ctx, ports.JobMessage{Kind: partner.JobKindGeocode, JobID: "g"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	attempts := 0
	done := make(chan struct{})
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, d ports.Delivery) {
			attempts++
			if attempts == 1 {
				if err := d.Nak(); err != nil {
					t.Errorf("Nak() error = %v", err)
				}
				return
			}
			cancel()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("message was not redelivered")
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestMemoryQueueNakWaitsForRedeliveryDelay(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	q := NewMemoryQueue(1, WithClock(clk), WithRedeliveryDelay(5*time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Publish(ctx, ports.JobMessage{Kind: partner.JobKindImport, JobID: "i"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	seen := make(chan int, 4)
	attempts := 0
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, d ports.Delivery) {
			attempts++
			if attempts == 1 {
				if err := d.Nak(); err != nil {
					t.Errorf("Nak() error = %v", err)
				}
			}
			seen <- attempts
		})
	}()

	waitAttempt := func(want int) {
		t.Helper()
		select {
		case got := <-seen:
			if got != want {
				t.Fatalf("attempt = %d, want %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("attempt %d was not delivered", want)
		}
	}

	waitAttempt(1)
	clk.Step(4 * time.Second)
	select {
	case got := <-seen:
		t.Fatalf("attempt %d delivered before the redelivery delay", got)
	case <-time.After(50 * time.Millisecond):
	}

	clk.Step(time.Second)
	waitAttempt(2)
}

func TestMemoryQueuePublishHonoursContext(t *testing.T) {
	q := NewMemoryQueue(1)
	_ = q.Publish(context.Background(), ports.JobMessage{JobID: "fill"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Publish(ctx, ports.JobMessage{JobID: "blocked"}); err == nil {
		t.Fatalf("Publish() expected context error")
	}
}
