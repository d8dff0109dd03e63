package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"partnermap/internal/domain/partner"
	"partnermap/internal/infrastructure/queue"
	"partnermap/internal/ports"
)

type fakeDelivery struct {
	msg        ports.JobMessage
	acks       int32
	naks       int32
	inProgress int32
}

func (d *fakeDelivery) Message() ports.JobMessage { return d.msg }
func (d *fakeDelivery) Ack() error                { atomic.AddInt32(&d.acks, 1); return nil }
func (d *fakeDelivery) Nak() error                { atomic.AddInt32(&d.naks, 1); return nil }
func (d *fakeDelivery) InProgress() error         { atomic.AddInt32(&d.inProgress, 1); return nil }

type importRunnerFunc func(ctx context.Context, id string) (partner.ImportJob, error)

func (f importRunnerFunc) Run(ctx context.Context, id string) (partner.ImportJob, error) {
	return f(ctx, id)
}

type geocodeRunnerFunc func(ctx context.Context, id string) (partner.GeocodeJob, error)

func (f geocodeRunnerFunc) Run(ctx context.Context, id string) (partner.GeocodeJob, error) {
	return f(ctx, id)
}

type queuedJobs struct {
	imports  []partner.ImportJob
	geocodes []partner.GeocodeJob
}

func (q queuedJobs) ListQueuedImportJobs(context.Context) ([]partner.ImportJob, error) {
	return q.imports, nil
}

func (q queuedJobs) ListQueuedGeocodeJobs(context.Context) ([]partner.GeocodeJob, error) {
	return q.geocodes, nil
}

func TestHandleAcknowledgement(t *testing.T) {
	errStore := errors.New("database is locked")

	tests := []struct {
		name     string
		kind     partner.JobKind
		job      partner.ImportJob
		err      error
		wantAck  int32
		wantNak  int32
		wantRuns int
	}{
		{name: "success", kind: partner.JobKindImport, job: partner.ImportJob{Status: partner.JobSucceeded}, wantAck: 1, wantRuns: 1},
		{name: "duplicate delivery", kind: partner.JobKindImport, err: partner.ErrJobNotClaimable, wantAck: 1, wantRuns: 1},
		{name: "job failed after start", kind: partner.JobKindImport, job: partner.ImportJob{Status: partner.JobFailed}, err: errStore, wantAck: 1, wantRuns: 1},
		{name: "claim failed", kind: partner.JobKindImport, err: errStore, wantNak: 1, wantRuns: 1},
		{name: "unknown kind", kind: "partner_export", wantAck: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := 0
			w := NewWorker(Deps{
				Imports: importRunnerFunc(func(context.Context, string) (partner.ImportJob, error) {
					runs++
					return tt.job, tt.err
				}),
				Geocodes: geocodeRunnerFunc(func(context.Context, string) (partner.GeocodeJob, error) {
					t.Fatalf("geocode runner must not be called")
					return partner.GeocodeJob{}, nil
				}),
			})
			d := &fakeDelivery{msg: ports.JobMessage{Kind: tt.kind, JobID: "job-1"}}
			w.Handle(context.Background(), d)

			if d.acks != tt.wantAck || d.naks != tt.wantNak || runs != tt.wantRuns {
				t.Fatalf("acks=%d naks=%d runs=%d, want %d/%d/%d", d.acks, d.naks, runs, tt.wantAck, tt.wantNak, tt.wantRuns)
			}
		})
	}
}

func TestHandleSendsHeartbeats(t *testing.T) {
	fake := clocktesting.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	release := make(chan struct{})
	d := &fakeDelivery{msg: ports.JobMessage{Kind: partner.JobKindGeocode, JobID: "g-1"}}

	w := NewWorker(Deps{
		Clock:     fake,
		Heartbeat: time.Second,
		Geocodes: geocodeRunnerFunc(func(context.Context, string) (partner.GeocodeJob, error) {
			<-release
			return partner.GeocodeJob{Status: partner.JobSucceeded}, nil
		}),
	})

	done := make(chan struct{})
	go func() {
		w.Handle(context.Background(), d)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !fake.HasWaiters() {
		if time.Now().After(deadline) {
			t.Fatalf("heartbeat ticker never started")
		}
		time.Sleep(time.Millisecond)
	}
	fake.Step(time.Second)
	for atomic.LoadInt32(&d.inProgress) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no heartbeat sent")
		}
		time.Sleep(time.Millisecond)
	}

	close(release)
	<-done
	if atomic.LoadInt32(&d.acks) != 1 {
		t.Fatalf("acks = %d", d.acks)
	}
}

func TestStartRequeuesAndRunsPendingJobs(t *testing.T) {
	q := queue.NewMemoryQueue(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var ran []string
	record := func(id string) {
		mu.Lock()
		defer mu.Unlock()
		ran = append(ran, id)
		if len(ran) == 2 {
			cancel()
		}
	}

	w := NewWorker(Deps{
		Queue: q,
		Queued: queuedJobs{
			imports:  []partner.ImportJob{{ID: "i-1"}},
			geocodes: []partner.GeocodeJob{{ID: "g-1"}},
		},
		Imports: importRunnerFunc(func(_ context.Context, id string) (partner.ImportJob, error) {
			record(id)
			return partner.ImportJob{Status: partner.JobSucceeded}, nil
		}),
		Geocodes: geocodeRunnerFunc(func(_ context.Context, id string) (partner.GeocodeJob, error) {
			record(id)
			return partner.GeocodeJob{Status: partner.JobSucceeded}, nil
		}),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not drain requeued jobs")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 2 || ran[0] != "i-1" || ran[1] != "g-1" {
		t.Fatalf("ran = %v", ran)
	}
}
