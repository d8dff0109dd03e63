package ratelimit

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"partnermap/internal/ports"
)

// Spacer lets one call run at a time and keeps at least interval between the
// end of one call and the start of the next. One Spacer per provider is
// shared by every caller in the process.
type Spacer struct {
	clock    clock.Clock
	interval time.Duration
	slot     chan struct{}
	last     time.Time
}

var _ ports.Limiter = (*Spacer)(nil)

func NewSpacer(c clock.Clock, interval time.Duration) *Spacer {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Spacer{
		clock:    c,
		interval: interval,
		slot:     make(chan struct{}, 1),
	}
}

// Wait takes the call slot and sleeps out the remaining interval. The slot
// is held until Done.
func (s *Spacer) Wait(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.last.IsZero() {
		return nil
	}
	remaining := s.interval - s.clock.Since(s.last)
	if remaining <= 0 {
		return nil
	}

	timer := s.clock.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C():
		return nil
	case <-ctx.Done():
		<-s.slot
		return ctx.Err()
	}
}

// Done records the completion time and frees the slot. It must follow a
// successful Wait.
func (s *Spacer) Done(context.Context) {
	s.last = s.clock.Now()
	select {
	case <-s.slot:
	default:
	}
}
