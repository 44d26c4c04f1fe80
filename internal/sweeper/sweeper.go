package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 100
	maxBatchesPerRun = 50
)

// Completer moves active bookings whose stay has ended to completed.
type Completer interface {
	CompleteEndedBookings(ctx context.Context, limit int) (int, error)
}

// Sweeper periodically completes ended bookings.
type Sweeper struct {
	completer Completer
	batchSize int
	logger    *zap.Logger
	scheduler gocron.Scheduler
}

// New validates dependencies. batchSize bounds each CompleteEndedBookings call.
func New(completer Completer, batchSize int, logger *zap.Logger) (*Sweeper, error) {
	if completer == nil {
		return nil, errors.New("sweeper: completer is nil")
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{completer: completer, batchSize: batchSize, logger: logger}, nil
}

// RunOnce drains ended bookings batch by batch and returns how many were completed.
func (sweeper *Sweeper) RunOnce(ctx context.Context) (int, error) {
	total := 0
	for batch := 0; batch < maxBatchesPerRun; batch++ {
		completed, err := sweeper.completer.CompleteEndedBookings(ctx, sweeper.batchSize)
		total += completed
		if err != nil {
			return total, err
		}
		if completed < sweeper.batchSize {
			break
		}
	}
	return total, nil
}

// Start schedules RunOnce every interval, beginning immediately. Overlapping runs are skipped.
func (sweeper *Sweeper) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweeper: interval must be positive, got %s", interval)
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("sweeper: scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { sweeper.sweep(ctx) }),
		gocron.WithName("complete-ended-bookings"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("sweeper: job: %w", err)
	}
	sweeper.scheduler = scheduler
	scheduler.Start()
	sweeper.logger.Info("booking sweeper started", zap.Duration("interval", interval))
	return nil
}

// Stop shuts the scheduler down and waits for a running sweep.
func (sweeper *Sweeper) Stop() error {
	if sweeper.scheduler == nil {
		return nil
	}
	return sweeper.scheduler.Shutdown()
}

func (sweeper *Sweeper) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	completed, err := sweeper.RunOnce(ctx)
	if err != nil {
		sweeper.logger.Warn("booking sweep failed", zap.Int("completed", completed), zap.Error(err))
		return
	}
	if completed > 0 {
		sweeper.logger.Info("booking sweep completed", zap.Int("completed", completed))
	}
}
