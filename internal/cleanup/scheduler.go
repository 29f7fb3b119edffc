// cleanup — фоновая очистка просроченных refresh-токенов и записей blacklist.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/go-invoicing-auth/internal/metrics"
	"github.com/pribylovaa/go-invoicing-auth/internal/storage"
)

// Period — пауза между циклами, отсчитывается от окончания предыдущего цикла.
const Period = 24 * time.Hour

// Clock абстрагирует время, чтобы тесты не ждали реальные сутки.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Scheduler последовательно выполняет циклы очистки. Циклы не пересекаются:
// следующий ждёт Period после завершения текущего.
type Scheduler struct {
	purger  storage.Purger
	log     *slog.Logger
	metrics *metrics.Metrics
	clock   Clock
	period  time.Duration
}

// Option настраивает Scheduler.
type Option func(*Scheduler)

// WithClock подменяет часы (для тестов).
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithMetrics подключает счётчики циклов очистки.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New создаёт планировщик с периодом Period.
func New(purger storage.Purger, log *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		purger: purger,
		log:    log,
		clock:  realClock{},
		period: Period,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run выполняет первый цикл сразу, затем повторяет их до отмены ctx.
// Ошибки и паники цикла логируются и не останавливают цикл.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("cleanup_started", slog.Duration("period", s.period))

	defer s.log.Info("cleanup_stopped")

	for ctx.Err() == nil {
		_, _ = s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.period):
		}
	}
}

// RunOnce — одна единица работы: удаление записей с expires_at <= now в обеих таблицах.
func (s *Scheduler) RunOnce(ctx context.Context) (res storage.PurgeResult, err error) {
	const op = "cleanup.scheduler.RunOnce"

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", op, r)
		}

		if err != nil {
			s.metrics.CleanupRun(metrics.ResultError, 0, 0)
			s.log.Error("cleanup_cycle_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return
		}

		s.metrics.CleanupRun(metrics.ResultOK, res.RefreshTokens, res.Blacklist)
		s.log.Info("cleanup_cycle_done",
			slog.Int64("refresh_tokens_deleted", res.RefreshTokens),
			slog.Int64("blacklist_deleted", res.Blacklist),
		)
	}()

	now := s.clock.Now().UTC()
	res, err = s.purger.PurgeExpired(ctx, now)
	if err != nil {
		return storage.PurgeResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}
