package counter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/InvoiceFox/app/models"
)

const (
	runCountersPrefix = "recurrence:counters:"
	countersTTL       = 90 * 24 * time.Hour
)

const (
	FieldRuns    = "runs"
	FieldTotal   = "total"
	FieldSuccess = "success"
	FieldErrors  = "errors"
	FieldSkipped = "skipped"
)

// DayStats holds the outcome counters of one UTC day.
type DayStats struct {
	Date    string `json:"date"`
	Runs    int64  `json:"runs"`
	Total   int64  `json:"total"`
	Success int64  `json:"success"`
	Errors  int64  `json:"errors"`
	Skipped int64  `json:"skipped"`
}

// Recorder keeps per-day run counters in a Redis hash.
type Recorder struct {
	client redis.UniversalClient
}

func NewRecorder(client redis.UniversalClient) *Recorder {
	return &Recorder{client: client}
}

func dayKey(day time.Time) string {
	return runCountersPrefix + day.UTC().Format("2006-01-02")
}

// Record adds one run summary to the counters of day.
func (r *Recorder) Record(ctx context.Context, day time.Time, summary models.RunSummary) error {
	key := dayKey(day)
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, key, FieldRuns, 1)
	pipe.HIncrBy(ctx, key, FieldTotal, int64(summary.Total))
	pipe.HIncrBy(ctx, key, FieldSuccess, int64(summary.Success))
	pipe.HIncrBy(ctx, key, FieldErrors, int64(summary.Errors))
	pipe.HIncrBy(ctx, key, FieldSkipped, int64(summary.Skipped))
	pipe.Expire(ctx, key, countersTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record run counters: %w", err)
	}
	return nil
}

// Get returns the counters of day; missing days are all zero.
func (r *Recorder) Get(ctx context.Context, day time.Time) (*DayStats, error) {
	data, err := r.client.HGetAll(ctx, dayKey(day)).Result()
	if err != nil {
		return nil, err
	}
	stats := &DayStats{Date: day.UTC().Format("2006-01-02")}
	for field, raw := range data {
		v, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			continue
		}
		switch field {
		case FieldRuns:
			stats.Runs = v
		case FieldTotal:
			stats.Total = v
		case FieldSuccess:
			stats.Success = v
		case FieldErrors:
			stats.Errors = v
		case FieldSkipped:
			stats.Skipped = v
		}
	}
	return stats, nil
}
