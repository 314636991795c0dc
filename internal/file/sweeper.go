package file

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically runs the expiry sweep in the background. The
// on-demand sweep endpoint stays available regardless; both paths share
// Service.Sweep.
type Sweeper struct {
	service  *Service
	interval time.Duration
	log      *zap.Logger
	done     chan struct{}
}

// NewSweeper creates a background sweeper.
func NewSweeper(service *Service, interval time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine. The loop stops
// when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.log.Info("expiry sweeper started", zap.Duration("interval", s.interval))

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Run once immediately on start.
		s.run(ctx)

		for {
			select {
			case <-ticker.C:
				s.run(ctx)
			case <-ctx.Done():
				s.log.Info("expiry sweeper stopping")
				close(s.done)
				return
			}
		}
	}()
}

// Wait blocks until the sweeper has fully stopped.
func (s *Sweeper) Wait() {
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	result, err := s.service.Sweep(ctx)
	if err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
		return
	}

	if result.DeletedCount == 0 && len(result.Errors) == 0 {
		return
	}

	s.log.Info("expiry sweep complete",
		zap.Int("deleted", result.DeletedCount),
		zap.Strings("errors", result.Errors),
	)
}
