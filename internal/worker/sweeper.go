package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StaleSweeper is the part of the payment service the sweeper drives.
type StaleSweeper interface {
	SweepStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Sweeper periodically closes payment runs left open by a crashed process.
type Sweeper struct {
	service    StaleSweeper
	interval   time.Duration
	staleAfter time.Duration
	log        *zap.Logger
}

func NewSweeper(service StaleSweeper, interval, staleAfter time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{
		service:    service,
		interval:   interval,
		staleAfter: staleAfter,
		log:        log.With(zap.String("worker", "sweeper")),
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("Sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("stale_after", s.staleAfter))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) int {
	swept, err := s.service.SweepStale(ctx, s.staleAfter)
	if err != nil {
		s.log.Error("Sweep failed", zap.Error(err))
		return 0
	}
	return swept
}
