package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/InvoiceFox/app/models"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/alerting"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/middleware"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/recurrence"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []recurrence.Request
	resp  *recurrence.Response
	err   error
}

func (f *fakeRunner) Run(_ context.Context, req recurrence.Request) (*recurrence.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return f.resp, nil
}

type fakeJobs struct {
	enqueued []recurrence.Request
	jobs     map[string]*jobqueue.Job
	err      error
}

func (f *fakeJobs) EnqueueRecurringRun(_ context.Context, req recurrence.Request) (*jobqueue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.enqueued = append(f.enqueued, req)
	return &jobqueue.Job{ID: "job-1", Type: jobqueue.JobTypeRecurringRun, Status: jobqueue.JobStatusPending}, nil
}

func (f *fakeJobs) GetJob(_ context.Context, id string) (*jobqueue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	job, ok := f.jobs[id]
	if !ok {
		return nil, redis.Nil
	}
	return job, nil
}

func (f *fakeJobs) Stats(_ context.Context) (*jobqueue.QueueStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &jobqueue.QueueStats{
		Running:  true,
		Pending:  int64(len(f.enqueued)),
		ByStatus: map[jobqueue.JobStatus]int64{jobqueue.JobStatusCompleted: 3},
	}, nil
}

type fakeStats struct {
	days []time.Time
}

func (f *fakeStats) Get(_ context.Context, day time.Time) (*counter.DayStats, error) {
	f.days = append(f.days, day)
	return &counter.DayStats{Date: day.Format("2006-01-02"), Runs: 2, Total: 5, Success: 4, Errors: 1}, nil
}

type fakeTester struct {
	got    []alerting.TestAlert
	result alerting.TestAlertResult
}

func (f *fakeTester) SendTest(_ context.Context, t alerting.TestAlert) alerting.TestAlertResult {
	f.got = append(f.got, t)
	return f.result
}

type fakeSettings struct {
	byUser map[uint]*models.AlertSettings
	err    error
}

func (f *fakeSettings) Get(_ context.Context, userID uint) (*models.AlertSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUser[userID], nil
}

func (f *fakeSettings) Save(_ context.Context, s *models.AlertSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if f.err != nil {
		return f.err
	}
	if f.byUser == nil {
		f.byUser = map[uint]*models.AlertSettings{}
	}
	f.byUser[s.UserID] = s
	return nil
}

type fakeLogs struct {
	byUser map[uint][]models.ExecutionLog
	err    error
	offset int
	limit  int
}

func (f *fakeLogs) Create(context.Context, *models.ExecutionLog) error   { return nil }
func (f *fakeLogs) MarkAlertSent(context.Context, uint, time.Time) error { return nil }

func (f *fakeLogs) ListByUser(_ context.Context, userID uint, offset, limit int) ([]models.ExecutionLog, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	f.offset, f.limit = offset, limit
	all := f.byUser[userID]
	return all, int64(len(all)), nil
}

// newTestApp mounts handlers behind the tenant middleware.
func newTestApp(register func(app *fiber.App)) *fiber.App {
	app := fiber.New()
	app.Use(middleware.UserContextMiddleware)
	register(app)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}
