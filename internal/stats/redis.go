package stats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zombar/truthlens/internal/models"
)

const (
	fieldAnalyzed       = "analyzed"
	fieldFakes          = "fakes"
	fieldHighConfidence = "high_confidence"
)

// RedisStore keeps counters in Redis hashes so several server processes
// share one set of totals. Every field is updated with HINCRBY.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a store whose keys start with prefix
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "truthlens:stats"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) totalKey() string {
	return s.prefix + ":total"
}

func (s *RedisStore) dayKey(date string) string {
	return s.prefix + ":day:" + date
}

// Record increments the total and today's hashes in one transaction
func (s *RedisStore) Record(ctx context.Context, isFake, isHighConfidence bool) error {
	dayKey := s.dayKey(s.now().Format(DateLayout))

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range []string{s.totalKey(), dayKey} {
			pipe.HIncrBy(ctx, key, fieldAnalyzed, 1)
			if isFake {
				pipe.HIncrBy(ctx, key, fieldFakes, 1)
			}
			if isHighConfidence {
				pipe.HIncrBy(ctx, key, fieldHighConfidence, 1)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record stats: %w", err)
	}
	return nil
}

// Snapshot reads the total and today's hashes
func (s *RedisStore) Snapshot(ctx context.Context) (models.StatsSnapshot, error) {
	total, err := s.read(ctx, s.totalKey())
	if err != nil {
		return models.StatsSnapshot{}, err
	}
	today, err := s.read(ctx, s.dayKey(s.now().Format(DateLayout)))
	if err != nil {
		return models.StatsSnapshot{}, err
	}

	return models.StatsSnapshot{
		Total:          total.Analyzed,
		TotalToday:     today.Analyzed,
		TotalFakes:     total.Fakes,
		FakesToday:     today.Fakes,
		HighConfidence: total.HighConfidence,
	}, nil
}

func (s *RedisStore) read(ctx context.Context, key string) (models.DailyStats, error) {
	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return models.DailyStats{}, fmt.Errorf("failed to read stats %s: %w", key, err)
	}

	var out models.DailyStats
	for field, target := range map[string]*int64{
		fieldAnalyzed:       &out.Analyzed,
		fieldFakes:          &out.Fakes,
		fieldHighConfidence: &out.HighConfidence,
	} {
		if v, ok := values[field]; ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return models.DailyStats{}, fmt.Errorf("corrupt stats field %s.%s: %w", key, field, err)
			}
			*target = n
		}
	}
	return out, nil
}
