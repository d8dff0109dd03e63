package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"k8s.io/utils/clock"

	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/errs"
	"partnermap/internal/ports"
)

const (
	defaultLease = 2 * time.Minute
	defaultPoll  = 250 * time.Millisecond
)

// RedisCommands is the subset of *redis.Client the shared limiter uses.
type RedisCommands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

// RedisSpacer spaces calls across processes. A key held with SET NX marks a
// call in flight; Done rewrites it to expire interval after completion, so
// the next Wait succeeds only once the spacing has elapsed everywhere.
type RedisSpacer struct {
	client   RedisCommands
	clock    clock.Clock
	key      string
	interval time.Duration
	lease    time.Duration
	poll     time.Duration
}

var _ ports.Limiter = (*RedisSpacer)(nil)

func NewRedisSpacer(client RedisCommands, c clock.Clock, provider string, interval time.Duration) *RedisSpacer {
	if c == nil {
		c = clock.RealClock{}
	}
	// redis treats a zero expiry as no expiry
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &RedisSpacer{
		client:   client,
		clock:    c,
		key:      "partnermap:geocode:spacing:" + provider,
		interval: interval,
		lease:    defaultLease,
		poll:     defaultPoll,
	}
}

func (r *RedisSpacer) Wait(ctx context.Context) error {
	for {
		acquired, err := r.client.SetNX(ctx, r.key, "busy", r.lease).Result()
		if err != nil {
			return errs.Wrap(err, "acquire geocode spacing key")
		}
		if acquired {
			return nil
		}

		ttl, err := r.client.PTTL(ctx, r.key).Result()
		if err != nil {
			return errs.Wrap(err, "read geocode spacing ttl")
		}
		delay := r.poll
		if ttl > 0 && ttl < delay {
			delay = ttl
		}

		timer := r.clock.NewTimer(delay)
		select {
		case <-timer.C():
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (r *RedisSpacer) Done(ctx context.Context) {
	if err := r.client.Set(ctx, r.key, "idle", r.interval).Err(); err != nil {
		logging.Warn(ctx, "release geocode spacing key failed", slog.String("key", r.key), slog.Any("err", errs.Loggable(err)))
	}
}
