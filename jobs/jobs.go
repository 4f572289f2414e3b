// jobs.go - Periodic housekeeping: login audit retention and rate-limit windows

package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"go-nutri-backend/logger"
)

// AttemptRetention is how long login attempts are kept.
const AttemptRetention = 30 * 24 * time.Hour

// AttemptPruner deletes login attempts older than a given age.
type AttemptPruner interface {
	Prune(ctx context.Context, age time.Duration) (int64, error)
}

// WindowPruner drops expired rate-limit windows.
type WindowPruner interface {
	Prune() int
}

type Housekeeper struct {
	Attempts AttemptPruner
	Windows  WindowPruner // nil when counters live in Redis
}

// Run does one housekeeping pass.
func (h *Housekeeper) Run(ctx context.Context) {
	if h.Attempts != nil {
		n, err := h.Attempts.Prune(ctx, AttemptRetention)
		if err != nil {
			logger.L().Errorw("prune login attempts", "error", err)
		} else if n > 0 {
			logger.L().Infow("pruned login attempts", "count", n)
		}
	}
	if h.Windows != nil {
		if n := h.Windows.Prune(); n > 0 {
			logger.L().Debugw("pruned rate-limit windows", "count", n)
		}
	}
}

// Start schedules Run every hour and returns the running scheduler; call
// Stop on it at shutdown.
func (h *Housekeeper) Start() (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.Local)

	_, err := scheduler.Every(1).Hour().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		h.Run(ctx)
	})
	if err != nil {
		return nil, err
	}

	scheduler.StartAsync()
	logger.L().Info("housekeeping jobs started")
	return scheduler, nil
}
