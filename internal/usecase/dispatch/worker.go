package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/utils/clock"

	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
	"partnermap/internal/ports"
)

const DefaultHeartbeat = 20 * time.Second

// ImportRunner runs one import job to a terminal state.
type ImportRunner interface {
	Run(ctx context.Context, jobID string) (partner.ImportJob, error)
}

// GeocodeRunner runs one backfill job to a terminal state.
type GeocodeRunner interface {
	Run(ctx context.Context, jobID string) (partner.GeocodeJob, error)
}

// QueuedJobs lists jobs still waiting in the store.
type QueuedJobs interface {
	ListQueuedImportJobs(ctx context.Context) ([]partner.ImportJob, error)
	ListQueuedGeocodeJobs(ctx context.Context) ([]partner.GeocodeJob, error)
}

// Worker consumes job messages and runs each job in turn.
type Worker struct {
	queue     ports.JobQueue
	imports   ImportRunner
	geocodes  GeocodeRunner
	queued    QueuedJobs
	clock     clock.Clock
	heartbeat time.Duration
}

type Deps struct {
	Queue     ports.JobQueue
	Imports   ImportRunner
	Geocodes  GeocodeRunner
	Queued    QueuedJobs
	Clock     clock.Clock
	Heartbeat time.Duration
}

func NewWorker(deps Deps) *Worker {
	w := &Worker{
		queue:     deps.Queue,
		imports:   deps.Imports,
		geocodes:  deps.Geocodes,
		queued:    deps.Queued,
		clock:     deps.Clock,
		heartbeat: deps.Heartbeat,
	}
	if w.clock == nil {
		w.clock = clock.RealClock{}
	}
	if w.heartbeat <= 0 {
		w.heartbeat = DefaultHeartbeat
	}
	return w
}

// Start consumes until ctx is done while re-publishing jobs left queued in
// the store. Requeueing runs beside the consumer so a bounded queue cannot
// block it.
func (w *Worker) Start(ctx context.Context) error {
	ctx = logging.WithAttrs(ctx, slog.String("component", "dispatch.worker"))
	go func() {
		if err := w.Requeue(ctx); err != nil && ctx.Err() == nil {
			logging.Error(ctx, "requeue pending jobs failed", slog.Any("err", errs.Loggable(err)))
		}
	}()
	logging.Info(ctx, "worker consuming jobs")
	return w.queue.Consume(ctx, w.Handle)
}

// Requeue publishes every job left queued by a previous process.
func (w *Worker) Requeue(ctx context.Context) error {
	imports, err := w.queued.ListQueuedImportJobs(ctx)
	if err != nil {
		return err
	}
	geocodes, err := w.queued.ListQueuedGeocodeJobs(ctx)
	if err != nil {
		return err
	}

	for _, job := range imports {
		if err := w.queue.Publish(ctx, ports.JobMessage{Kind: partner.JobKindImport, JobID: job.ID}); err != nil {
			return err
		}
	}
	for _, job := range geocodes {
		if err := w.queue.Publish(ctx, ports.JobMessage{Kind: partner.JobKindGeocode, JobID: job.ID}); err != nil {
			return err
		}
	}
	if n := len(imports) + len(geocodes); n > 0 {
		logging.Info(ctx, "requeued pending jobs", slog.Int("imports", len(imports)), slog.Int("geocodes", len(geocodes)))
	}
	return nil
}

// Handle runs one delivery. Job failures are already recorded on the job,
// so only errors before the job started cause a redelivery.
func (w *Worker) Handle(ctx context.Context, delivery ports.Delivery) {
	msg := delivery.Message()
	ctx = logging.WithJob(ctx, string(msg.Kind), msg.JobID)

	stop := w.startHeartbeat(ctx, delivery)
	started, err := w.run(ctx, msg)
	stop()

	switch {
	case err == nil:
		ack(ctx, delivery)
	case errors.Is(err, partner.ErrJobNotClaimable):
		logging.Debug(ctx, "skip job that is not queued")
		ack(ctx, delivery)
	case errors.Is(err, partner.ErrJobNotFound):
		logging.Warn(ctx, "drop message for unknown job")
		ack(ctx, delivery)
	case started:
		ack(ctx, delivery)
	default:
		logging.Warn(ctx, "job could not start; redelivering", slog.Any("err", errs.Loggable(err)))
		if nakErr := delivery.Nak(); nakErr != nil {
			logging.Error(ctx, "nak job message failed", slog.Any("err", errs.Loggable(nakErr)))
		}
	}
}

// run reports whether the job reached a running state before err.
func (w *Worker) run(ctx context.Context, msg ports.JobMessage) (bool, error) {
	switch msg.Kind {
	case partner.JobKindImport:
		job, err := w.imports.Run(ctx, msg.JobID)
		return job.Status.Terminal(), err
	case partner.JobKindGeocode:
		job, err := w.geocodes.Run(ctx, msg.JobID)
		return job.Status.Terminal(), err
	default:
		return false, fmt.Errorf("%w: unknown job kind %q", partner.ErrJobNotFound, msg.Kind)
	}
}

func (w *Worker) startHeartbeat(ctx context.Context, delivery ports.Delivery) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := w.clock.NewTicker(w.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C():
				if err := delivery.InProgress(); err != nil {
					logging.Warn(ctx, "extend job deadline failed", slog.Any("err", errs.Loggable(err)))
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func ack(ctx context.Context, delivery ports.Delivery) {
	if err := delivery.Ack(); err != nil {
		logging.Error(ctx, "ack job message failed", slog.Any("err", errs.Loggable(err)))
	}
}
