// Package scheduler polls for due calls and dispatches them through the
// telephony provider.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/callvox/backend/internal/models"
	"github.com/callvox/backend/internal/voice"
)

// lockKey guards a whole polling pass so overlapping invocations (cron overlap,
// redeploy) normally skip instead of racing. The per-row conditional claim in
// the store remains the backstop if the lock expires mid-pass.
const lockKey = "scheduler:due-calls:lock"

// Store is the persistence surface the scheduler needs.
type Store interface {
	FindDue(ctx context.Context, now time.Time) ([]models.ScheduledCall, error)
	// MarkDialed conditionally claims an incomplete call; false means another
	// invocation already claimed it.
	MarkDialed(ctx context.Context, id uuid.UUID) (bool, error)
	// Reopen makes a claimed call eligible again after a failed dispatch.
	Reopen(ctx context.Context, id uuid.UUID) error
}

// Dialer places an outbound call that fetches instructions from callbackURL.
type Dialer interface {
	PlaceCall(ctx context.Context, to, from, callbackURL string) error
}

// Scheduler scans for due calls and dials them.
type Scheduler struct {
	store      Store
	dialer     Dialer
	rdb        *redis.Client // optional; nil disables the run lock
	baseURL    string
	fromNumber string
	interval   time.Duration
	lockTTL    time.Duration
	logger     *zap.Logger
}

// New creates a scheduler. rdb may be nil when a single invocation source is
// guaranteed (tests, manual -once runs).
func New(store Store, dialer Dialer, rdb *redis.Client, baseURL, fromNumber string, interval, lockTTL time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:      store,
		dialer:     dialer,
		rdb:        rdb,
		baseURL:    baseURL,
		fromNumber: fromNumber,
		interval:   interval,
		lockTTL:    lockTTL,
		logger:     logger,
	}
}

// Run executes a pass immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	s.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context) {
	if _, err := s.RunOnce(ctx, time.Now()); err != nil {
		s.logger.Error("scheduler pass", zap.Error(err))
	}
}

// RunOnce processes every call due at now: claim, dial, and on dispatch failure
// reopen so the next pass retries. Failed rows are retried on every future pass
// with no backoff or cap; that is accepted behavior, not an oversight. Returns
// the number of successfully dispatched calls.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, lockKey, uuid.New().String(), s.lockTTL).Result()
		if err != nil {
			return 0, err
		}
		if !ok {
			s.logger.Info("scheduler pass skipped, lock held elsewhere")
			return 0, nil
		}
		defer s.rdb.Del(context.WithoutCancel(ctx), lockKey)
	}

	due, err := s.store.FindDue(ctx, now)
	if err != nil {
		return 0, err
	}

	dialed := 0
	for _, call := range due {
		claimed, err := s.store.MarkDialed(ctx, call.ID)
		if err != nil {
			s.logger.Error("claim call", zap.Error(err), zap.String("call_id", call.ID.String()))
			continue
		}
		if !claimed {
			// Lost the race to an overlapping invocation; it dials, we move on.
			continue
		}

		callbackURL := s.baseURL + voice.AskPath + "?questionIndex=0"
		if err := s.dialer.PlaceCall(ctx, call.Phone, s.fromNumber, callbackURL); err != nil {
			s.logger.Error("dispatch call", zap.Error(err),
				zap.String("call_id", call.ID.String()), zap.String("phone", call.Phone))
			if err := s.store.Reopen(ctx, call.ID); err != nil {
				s.logger.Error("reopen call", zap.Error(err), zap.String("call_id", call.ID.String()))
			}
			continue
		}

		dialed++
		s.logger.Info("call dispatched",
			zap.String("call_id", call.ID.String()),
			zap.String("name", call.Name),
			zap.String("phone", call.Phone))
	}
	return dialed, nil
}
