package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/internal/domain/entity"
	"github.com/yourusername/exam-api/internal/domain/repository"
	apperrors "github.com/yourusername/exam-api/internal/pkg/errors"
)

const (
	sweepLockKey      = "exam:sweeper:lock"
	defaultSweepBatch = 100
)

// Finalizer закрывает попытку со скорингом
type Finalizer interface {
	Finalize(ctx context.Context, actor *Actor, attemptID uint, reason entity.AttemptStatus) (*ResultView, error)
}

// ExpirySweeper периодически закрывает попытки, время которых вышло,
// если студент так и не отправил их сам.
type ExpirySweeper struct {
	attempts   repository.AttemptRepository
	finalizer  Finalizer
	cache      repository.CacheRepository
	clock      *TimeKeeper
	interval   time.Duration
	lockTTL    time.Duration
	batch      int
	instanceID string
	log        *zap.Logger
}

// NewExpirySweeper создает ExpirySweeper. Без cache блокировка между инстансами не берется.
func NewExpirySweeper(
	attempts repository.AttemptRepository,
	finalizer Finalizer,
	cache repository.CacheRepository,
	clock *TimeKeeper,
	interval, lockTTL time.Duration,
	log *zap.Logger,
) *ExpirySweeper {
	if lockTTL <= 0 || lockTTL > interval {
		lockTTL = interval
	}
	return &ExpirySweeper{
		attempts:   attempts,
		finalizer:  finalizer,
		cache:      cache,
		clock:      clock,
		interval:   interval,
		lockTTL:    lockTTL,
		batch:      defaultSweepBatch,
		instanceID: uuid.NewString(),
		log:        log.Named("sweeper"),
	}
}

// Run запускает цикл до отмены ctx
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Expiry sweeper started",
		zap.Duration("interval", s.interval), zap.String("instance_id", s.instanceID))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("Expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce закрывает одну партию просроченных попыток с причиной timeout.
// Возвращает число закрытых попыток.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	if s.cache != nil {
		acquired, err := s.cache.SetNX(ctx, sweepLockKey, s.instanceID, s.lockTTL)
		if err != nil {
			// Finalize идемпотентен, параллельный проход другого инстанса безопасен
			s.log.Warn("Sweep lock unavailable, sweeping anyway", zap.Error(err))
		} else if !acquired {
			return 0, nil
		}
	}

	expired, err := s.attempts.ListExpiredInProgress(ctx, s.clock.Now(), s.clock.Grace(), s.batch)
	if err != nil {
		return 0, err
	}

	closed := 0
	for i := range expired {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		id := expired[i].ID
		_, err := s.finalizer.Finalize(ctx, nil, id, entity.AttemptStatusTimeout)
		switch {
		case err == nil:
			closed++
		case errors.Is(err, apperrors.ErrInvalidState):
			// уже закрыта другим путем
		default:
			s.log.Error("Failed to finalize expired attempt", zap.Uint("attempt_id", id), zap.Error(err))
		}
	}
	if closed > 0 {
		s.log.Info("Expired attempts finalized", zap.Int("count", closed))
	}
	return closed, nil
}
