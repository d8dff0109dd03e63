package ports

import (
	"context"

	"partnermap/internal/domain/partner"
)

// JobMessage asks a worker to run one job.
type JobMessage struct {
	Kind  partner.JobKind `json:"kind"`
	JobID string          `json:"jobId"`
}

// Delivery is one received message. Exactly one of Ack or Nak should be
// called; InProgress extends the redelivery deadline of a long job.
type Delivery interface {
	Message() JobMessage
	Ack() error
	Nak() error
	InProgress() error
}

// JobQueue delivers job messages at least once.
type JobQueue interface {
	Publish(ctx context.Context, msg JobMessage) error
	// Consume calls handle for each delivery until ctx is done.
	Consume(ctx context.Context, handle func(ctx context.Context, delivery Delivery)) error
}
