package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"k8s.io/utils/clock"

	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/errs"
	"partnermap/internal/ports"
)

// DefaultRedeliveryDelay is how long a Nak'd message waits before it is
// queued again.
const DefaultRedeliveryDelay = time.Second

// ErrQueueFull is returned when a Nak cannot requeue without blocking.
var ErrQueueFull = errors.New("job queue is full")

// MemoryQueue is an in-process queue for single binary deployments.
type MemoryQueue struct {
	ch    chan ports.JobMessage
	clock clock.Clock
	delay time.Duration
}

var _ ports.JobQueue = (*MemoryQueue)(nil)

type MemoryOption func(*MemoryQueue)

// WithRedeliveryDelay sets the Nak delay. Zero requeues immediately.
func WithRedeliveryDelay(d time.Duration) MemoryOption {
	return func(q *MemoryQueue) {
		if d >= 0 {
			q.delay = d
		}
	}
}

func WithClock(c clock.Clock) MemoryOption {
	return func(q *MemoryQueue) {
		if c != nil {
			q.clock = c
		}
	}
}

func NewMemoryQueue(size int, opts ...MemoryOption) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	q := &MemoryQueue{
		ch:    make(chan ports.JobMessage, size),
		clock: clock.RealClock{},
		delay: DefaultRedeliveryDelay,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *MemoryQueue) Publish(ctx context.Context, msg ports.JobMessage) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "publish job message")
	}
}

func (q *MemoryQueue) Consume(ctx context.Context, handle func(ctx context.Context, delivery ports.Delivery)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-q.ch:
			handle(ctx, &memoryDelivery{queue: q, msg: msg})
		}
	}
}

func (q *MemoryQueue) requeue(msg ports.JobMessage) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   ports.JobMessage
}

func (d *memoryDelivery) Message() ports.JobMessage { return d.msg }

func (d *memoryDelivery) Ack() error { return nil }

func (d *memoryDelivery) InProgress() error { return nil }

// Nak puts the message back at the tail of the queue after the redelivery
// delay. A message that still finds the queue full is dropped; the worker's
// startup requeue picks its job up again.
func (d *memoryDelivery) Nak() error {
	q := d.queue
	if q.delay == 0 {
		return q.requeue(d.msg)
	}
	if len(q.ch) == cap(q.ch) {
		return ErrQueueFull
	}

	msg := d.msg
	q.clock.AfterFunc(q.delay, func() {
		if err := q.requeue(msg); err != nil {
			logging.Error(context.Background(), "redeliver job message failed",
				slog.String("job_kind", string(msg.Kind)),
				slog.String("job_id", msg.JobID),
				slog.Any("err", errs.Loggable(err)))
		}
	})
	return nil
}
