package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// AlertScheduler drives the periodic scan for due alerts. The handle is owned
// by the fx lifecycle: started at initialization, stopped at shutdown.
type AlertScheduler struct {
	service  *AlertService
	logger   *zap.Logger
	interval time.Duration

	// ticking guards against overlapping scans: a tick that fires while the
	// previous one is still processing is skipped, not run concurrently.
	ticking sync.Mutex
}

func NewAlertScheduler(service *AlertService, logger *zap.Logger) *AlertScheduler {
	return &AlertScheduler{service: service, logger: logger, interval: time.Minute}
}

// StartScheduler starts the background goroutine that periodically checks for
// and sends due alerts. The ticker keeps firing regardless of any single
// tick's outcome.
func (s *AlertScheduler) StartScheduler(lc fx.Lifecycle) {
	ticker := time.NewTicker(s.interval)
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.logger.Info("starting alert scheduler", zap.Duration("interval", s.interval))
			go func() {
				schedulerCtx := context.Background()
				for {
					select {
					case <-ticker.C:
						s.tick(schedulerCtx)
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.logger.Info("stopping alert scheduler")
			ticker.Stop()
			close(done)
			return nil
		},
	})
}

func (s *AlertScheduler) tick(ctx context.Context) {
	if !s.ticking.TryLock() {
		s.logger.Warn("previous alert scan still running, skipping tick")
		return
	}
	defer s.ticking.Unlock()
	s.service.ProcessDue(ctx)
}
