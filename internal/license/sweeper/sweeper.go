package sweeper

import (
	"context"
	"io"
	"log/slog"
	"time"

	"vialidad/internal/platform/redis"
)

const (
	leaderLockKey = "vialidad:sweeper:leader"
	leaderLockTTL = 10 * time.Minute
)

// Service is the slice of the lifecycle engine the sweeper drives.
type Service interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically deactivates licenses whose expiry date has passed.
// When several instances run against the same database, a Redis lock elects
// one leader per pass; without Redis every instance sweeps, which is safe
// because the sweep is idempotent.
type Sweeper struct {
	service  Service
	interval time.Duration
	locker   *redis.Client
	logger   *slog.Logger
}

type Option func(s *Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithLeaderLock enables the Redis leader election. A nil client disables it.
func WithLeaderLock(client *redis.Client) Option {
	return func(s *Sweeper) {
		s.locker = client
	}
}

func New(service Service, interval time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{
		service:  service,
		interval: interval,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps once immediately, then on every tick until the context ends.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if !s.acquireLeadership(ctx) {
		s.logger.DebugContext(ctx, "skipping sweep, another instance holds the leader lock")
		return
	}

	swept, err := s.service.SweepExpired(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep failed", "error", err)
		return
	}
	if swept > 0 {
		s.logger.InfoContext(ctx, "expired licenses deactivated", "count", swept)
	}
}

// acquireLeadership tries to take the leader lock for this pass. The lock
// expires on its own rather than being released, which throttles sweeps to
// one per TTL across the fleet.
func (s *Sweeper) acquireLeadership(ctx context.Context) bool {
	if s.locker == nil {
		return true
	}
	ok, err := s.locker.SetNX(ctx, leaderLockKey, "1", leaderLockTTL).Result()
	if err != nil {
		s.logger.WarnContext(ctx, "leader lock unavailable, sweeping anyway", "error", err)
		return true
	}
	return ok
}
