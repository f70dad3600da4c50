package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zombar/truthlens/internal/models"
)

// Store persists per-day counters. AddDailyStats adds to the stored values
// so concurrent writers never overwrite each other.
type Store interface {
	AddDailyStats(ctx context.Context, deltas []models.DailyStats) error
	LoadDailyStats(ctx context.Context) ([]models.DailyStats, error)
}

// Checkpointer periodically flushes the increments of a Counter into a Store
// and reloads the totals, so counts survive restarts and are shared by every
// process using the same store.
type Checkpointer struct {
	counter  *Counter
	store    Store
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
	mu       sync.Mutex // serializes Save
}

// NewCheckpointer saves counter to store on the given interval
func NewCheckpointer(counter *Counter, store Store, interval time.Duration, logger *slog.Logger) *Checkpointer {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checkpointer{
		counter:  counter,
		store:    store,
		schedule: fmt.Sprintf("@every %s", interval),
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   logger,
	}
}

// Restore loads persisted counters into the counter
func (c *Checkpointer) Restore(ctx context.Context) error {
	days, err := c.reload(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("stats restored", "days", days)
	return nil
}

func (c *Checkpointer) reload(ctx context.Context) (int, error) {
	days, err := c.store.LoadDailyStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to restore stats: %w", err)
	}
	c.counter.Restore(days)
	return len(days), nil
}

// Start schedules the periodic checkpoint
func (c *Checkpointer) Start() error {
	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.Save(context.Background()); err != nil {
			c.logger.Error("stats checkpoint failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid checkpoint schedule %q: %w", c.schedule, err)
	}
	c.cron.Start()
	return nil
}

// Save adds the pending increments to the store, then reloads the totals
// to pick up counts written by other processes
func (c *Checkpointer) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deltas := c.counter.TakePending(); len(deltas) > 0 {
		if err := c.store.AddDailyStats(ctx, deltas); err != nil {
			c.counter.ReturnPending(deltas)
			return err
		}
	}
	_, err := c.reload(ctx)
	return err
}

// Stop halts the schedule and writes a final checkpoint
func (c *Checkpointer) Stop(ctx context.Context) error {
	<-c.cron.Stop().Done()
	return c.Save(ctx)
}
