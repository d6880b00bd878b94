package redisdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ghostwriter/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	reportKeyPrefix = "report:"
	recentKey       = "reports:recent"
)

// ReportRepo stores reports as JSON under report:<id> with a TTL and indexes
// them by creation time in the reports:recent sorted set.
type ReportRepo struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

var _ repository.ReportRepo = (*ReportRepo)(nil)

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewReportRepo(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ReportRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReportRepo{client: client, ttl: ttl, logger: logger, now: time.Now}
}

func (r *ReportRepo) Save(ctx context.Context, report *repository.Report) error {
	val, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, reportKeyPrefix+report.ID, val, r.ttl)
		pipe.ZAdd(ctx, recentKey, redis.Z{
			Score:  float64(report.CreatedAt.UnixNano()),
			Member: report.ID,
		})
		// drop index entries whose report has already expired
		pipe.ZRemRangeByScore(ctx, recentKey, "-inf",
			fmt.Sprintf("(%d", r.now().Add(-r.ttl).UnixNano()))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.ID, err)
	}
	return nil
}

func (r *ReportRepo) Get(ctx context.Context, id string) (*repository.Report, error) {
	val, err := r.client.Get(ctx, reportKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}

	var report repository.Report
	if err := json.Unmarshal(val, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &report, nil
}

func (r *ReportRepo) List(ctx context.Context, limit int) ([]*repository.Report, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := r.client.ZRevRange(ctx, recentKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if len(ids) == 0 {
		return []*repository.Report{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = reportKeyPrefix + id
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load reports: %w", err)
	}

	reports := make([]*repository.Report, 0, len(vals))
	for i, v := range vals {
		// expired since the index was last pruned
		s, ok := v.(string)
		if !ok {
			continue
		}
		var report repository.Report
		if err := json.Unmarshal([]byte(s), &report); err != nil {
			r.logger.Warn("skipping undecodable report",
				zap.String("report_id", ids[i]),
				zap.Error(err))
			continue
		}
		reports = append(reports, &report)
	}
	return reports, nil
}
