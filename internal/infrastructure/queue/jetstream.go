package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/errs"
	"partnermap/internal/ports"
)

const (
	StreamName     = "PARTNERMAP_JOBS"
	subjectPrefix  = "partnermap.jobs."
	defaultDurable = "partnermap-worker"
)

type JetStreamConfig struct {
	URL        string
	Durable    string
	AckWait    time.Duration
	MaxDeliver int

	// RedeliveryDelay is passed to NakWithDelay.
	RedeliveryDelay time.Duration
}

// JetStreamQueue delivers jobs through a durable JetStream consumer so
// several worker processes can share one stream.
type JetStreamQueue struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	stream  jetstream.Stream
	durable string
	ackWait time.Duration
	maxDel  int
	delay   time.Duration
}

var _ ports.JobQueue = (*JetStreamQueue)(nil)

func NewJetStreamQueue(ctx context.Context, cfg JetStreamConfig) (*JetStreamQueue, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, nats.Name("partnermap"))
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", url)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errs.Wrap(err, "create jetstream context")
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ">"},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, errs.Wrapf(err, "create stream %s", StreamName)
	}

	q := &JetStreamQueue{
		conn:    conn,
		js:      js,
		stream:  stream,
		durable: cfg.Durable,
		ackWait: cfg.AckWait,
		maxDel:  cfg.MaxDeliver,
		delay:   cfg.RedeliveryDelay,
	}
	if q.durable == "" {
		q.durable = defaultDurable
	}
	if q.ackWait <= 0 {
		q.ackWait = time.Minute
	}
	if q.maxDel <= 0 {
		q.maxDel = 5
	}
	if q.delay < 0 {
		q.delay = 0
	}
	return q, nil
}

func (q *JetStreamQueue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *JetStreamQueue) Publish(ctx context.Context, msg ports.JobMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errs.Wrap(err, "encode job message")
	}
	if _, err := q.js.Publish(ctx, subjectPrefix+string(msg.Kind), data); err != nil {
		return errs.Wrapf(err, "publish %s job %s", msg.Kind, msg.JobID)
	}
	return nil
}

func (q *JetStreamQueue) Consume(ctx context.Context, handle func(ctx context.Context, delivery ports.Delivery)) error {
	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:    q.durable,
		AckPolicy:  jetstream.AckExplicitPolicy,
		AckWait:    q.ackWait,
		MaxDeliver: q.maxDel,
	})
	if err != nil {
		return errs.Wrapf(err, "create consumer %s", q.durable)
	}

	consumeCtx, err := consumer.Consume(func(m jetstream.Msg) {
		var msg ports.JobMessage
		if err := json.Unmarshal(m.Data(), &msg); err != nil {
			logging.Warn(ctx, "drop malformed job message",
				slog.String("subject", m.Subject()), slog.Any("err", errs.Loggable(err)))
			_ = m.Term()
			return
		}
		handle(ctx, &jetStreamDelivery{msg: msg, raw: m, delay: q.delay})
	})
	if err != nil {
		return errs.Wrap(err, "start consuming jobs")
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	return nil
}

type jetStreamDelivery struct {
	msg   ports.JobMessage
	raw   jetstream.Msg
	delay time.Duration
}

func (d *jetStreamDelivery) Message() ports.JobMessage { return d.msg }

func (d *jetStreamDelivery) Ack() error { return d.raw.Ack() }

func (d *jetStreamDelivery) Nak() error { return d.raw.NakWithDelay(d.delay) }

func (d *jetStreamDelivery) InProgress() error { return d.raw.InProgress() }
