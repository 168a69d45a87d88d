package counter

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/InvoiceFox/app/models"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/cache"
)

func TestRecorder_RecordAndGet(t *testing.T) {
	client := redis.NewClient(cache.Options())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	// a far future day keeps the test away from real counters
	day := time.Date(2999, 1, 2, 8, 0, 0, 0, time.UTC)
	client.Del(context.Background(), dayKey(day))
	defer client.Del(context.Background(), dayKey(day))

	r := NewRecorder(client)
	require.NoError(t, r.Record(context.Background(), day, models.RunSummary{Total: 3, Success: 2, Errors: 1}))
	require.NoError(t, r.Record(context.Background(), day, models.RunSummary{Total: 3, Skipped: 3}))

	stats, err := r.Get(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, DayStats{Date: "2999-01-02", Runs: 2, Total: 6, Success: 2, Errors: 1, Skipped: 3}, *stats)

	ttl, err := client.TTL(context.Background(), dayKey(day)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 89*24*time.Hour)

	empty, err := r.Get(context.Background(), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, empty.Runs)
}
