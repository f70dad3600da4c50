// Package stats keeps running totals of classifications per calendar day.
package stats

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zombar/truthlens/internal/models"
)

// DateLayout is the key format of a calendar day
const DateLayout = "2006-01-02"

// Recorder counts completed classifications
type Recorder interface {
	Record(ctx context.Context, isFake, isHighConfidence bool) error
	Snapshot(ctx context.Context) (models.StatsSnapshot, error)
}

// Counter is an in-process Recorder. Increments happen under a lock so
// concurrent requests never lose updates. Besides the totals it keeps the
// increments not yet checkpointed, so several processes can add their own
// counts to one store.
type Counter struct {
	mu      sync.Mutex
	days    map[string]*models.DailyStats
	pending map[string]*models.DailyStats
	now     func() time.Time
}

// NewCounter creates an empty counter using the local clock
func NewCounter() *Counter {
	return &Counter{
		days:    make(map[string]*models.DailyStats),
		pending: make(map[string]*models.DailyStats),
		now:     time.Now,
	}
}

// Record adds one analysis to today's counters
func (c *Counter) Record(_ context.Context, isFake, isHighConfidence bool) error {
	today := c.now().Format(DateLayout)

	delta := models.DailyStats{Date: today, Analyzed: 1}
	if isFake {
		delta.Fakes = 1
	}
	if isHighConfidence {
		delta.HighConfidence = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	add(c.days, delta)
	add(c.pending, delta)
	return nil
}

// add merges d into the day keyed by d.Date
func add(days map[string]*models.DailyStats, d models.DailyStats) {
	day, ok := days[d.Date]
	if !ok {
		day = &models.DailyStats{Date: d.Date}
		days[d.Date] = day
	}
	day.Analyzed += d.Analyzed
	day.Fakes += d.Fakes
	day.HighConfidence += d.HighConfidence
}

// sorted copies days ordered by date
func sorted(days map[string]*models.DailyStats) []models.DailyStats {
	out := make([]models.DailyStats, 0, len(days))
	for _, day := range days {
		out = append(out, *day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Snapshot sums all days and reports today's figures
func (c *Counter) Snapshot(_ context.Context) (models.StatsSnapshot, error) {
	today := c.now().Format(DateLayout)

	c.mu.Lock()
	defer c.mu.Unlock()

	var snap models.StatsSnapshot
	for date, day := range c.days {
		snap.Total += day.Analyzed
		snap.TotalFakes += day.Fakes
		snap.HighConfidence += day.HighConfidence
		if date == today {
			snap.TotalToday = day.Analyzed
			snap.FakesToday = day.Fakes
		}
	}
	return snap, nil
}

// Days returns a copy of the per-day counters ordered by date
func (c *Counter) Days() []models.DailyStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sorted(c.days)
}

// Restore replaces the totals with the persisted days plus the increments
// that have not been checkpointed yet
func (c *Counter) Restore(days []models.DailyStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.days = make(map[string]*models.DailyStats, len(days))
	for _, day := range days {
		add(c.days, day)
	}
	for _, day := range c.pending {
		add(c.days, *day)
	}
}

// TakePending returns the increments recorded since the last call and
// clears them
func (c *Counter) TakePending() []models.DailyStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := sorted(c.pending)
	c.pending = make(map[string]*models.DailyStats)
	return out
}

// ReturnPending puts back increments that could not be persisted
func (c *Counter) ReturnPending(days []models.DailyStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, day := range days {
		add(c.pending, day)
	}
}
