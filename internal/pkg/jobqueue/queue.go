package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/InvoiceFox/internal/pkg/recurrence"
)

const (
	// Redis keys
	JobKeyPrefix     = "job:"
	JobQueueKey      = "job_queue"
	JobProcessingKey = "job_processing"
	JobStatsKey      = "job_stats"

	DefaultMaxRetries = 3

	// JobTTL keeps finished runs readable through GET /jobs/:id for a day.
	JobTTL = 24 * time.Hour

	stuckAfter    = 30 * time.Minute
	sweepInterval = time.Minute
	popTimeout    = time.Second
)

// Runner executes one recurrence run.
type Runner interface {
	Run(ctx context.Context, req recurrence.Request) (*recurrence.Response, error)
}

// Queue runs recurrence jobs stored in Redis on a fixed set of workers.
type Queue struct {
	client     redis.UniversalClient
	runner     Runner
	workers    int
	retryDelay time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

func NewQueue(client redis.UniversalClient, runner Runner, workers int) *Queue {
	if workers <= 0 {
		workers = 2
	}
	return &Queue{
		client:     client,
		runner:     runner,
		workers:    workers,
		retryDelay: time.Minute,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the workers and the stuck job sweeper. Calling it twice is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}

	q.stopCh = make(chan struct{})
	q.running = true
	log.Infof("[JobQueue] Starting %d recurrence workers", q.workers)

	q.wg.Add(q.workers + 1)
	for i := 0; i < q.workers; i++ {
		go q.runWorker(i)
	}
	go q.runSweeper()
}

// Stop signals all goroutines and waits for in-flight runs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return
	}

	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] Workers stopped")
}

func (q *Queue) stopping() bool {
	select {
	case <-q.stopCh:
		return true
	default:
		return false
	}
}

func (q *Queue) runWorker(n int) {
	defer q.wg.Done()
	ctx := context.Background()

	for !q.stopping() {
		job, err := q.dequeueJob(ctx)
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			log.Errorf("[JobQueue] Worker %d could not dequeue: %v", n, err)
			time.Sleep(time.Second)
			continue
		}

		log.Infof("[JobQueue] Worker %d picked up %s job %s", n, job.Type, job.ID)
		q.processJob(ctx, job)
	}
}

// runSweeper puts jobs back that a crashed instance left in the processing list.
func (q *Queue) runSweeper() {
	defer q.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case now := <-ticker.C:
			q.sweepStuck(context.Background(), stuckAfter, now)
		}
	}
}

func (q *Queue) sweepStuck(ctx context.Context, maxAge time.Duration, now time.Time) {
	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		log.Errorf("[JobQueue] Sweeper cannot read processing list: %v", err)
		return
	}

	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if err != nil && !errors.Is(err, redis.Nil) {
			log.Errorf("[JobQueue] Sweeper cannot load job %s: %v", id, err)
		}
		if err != nil || job.Status != JobStatusProcessing {
			q.removeFromProcessing(ctx, id)
			continue
		}

		if age := now.Sub(job.startedAt()); age > maxAge {
			log.Warnf("[JobQueue] Job %s stuck in processing for %s, requeueing", job.ID, age)
			job.ErrorMsg = "recovered by sweeper"
			_ = q.requeueJob(ctx, job)
		}
	}
}

// EnqueueRecurringRun stores req as a pending job and pushes it to the queue.
func (q *Queue) EnqueueRecurringRun(ctx context.Context, req recurrence.Request) (*Job, error) {
	now := time.Now()
	job := &Job{
		ID:         uuid.NewString(),
		Type:       JobTypeRecurringRun,
		Status:     JobStatusPending,
		Payload:    NewRecurringRunJobPayload(req).ToMap(),
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
		pipe.LPush(ctx, JobQueueKey, job.ID)
		pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusPending), 1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	log.Infof("[JobQueue] Queued recurring run %s (source=%q)", job.ID, req.Source)
	return job, nil
}

// dequeueJob atomically moves the oldest pending id to the processing list.
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	id, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, popTimeout).Result()
	if err != nil {
		return nil, err
	}

	job, err := q.GetJob(ctx, id)
	if err != nil {
		q.removeFromProcessing(ctx, id)
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	return job, nil
}

func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	var err error
	if job.Type == JobTypeRecurringRun {
		err = q.processRecurringRunJob(ctx, job)
	} else {
		err = permanent(fmt.Errorf("unknown job type: %s", job.Type))
	}

	q.finish(ctx, job, err)
	q.removeFromProcessing(ctx, job.ID)
}

// finish records the outcome and schedules a delayed retry when allowed.
func (q *Queue) finish(ctx context.Context, job *Job, err error) {
	if err == nil {
		job.MarkAsCompleted()
		q.updateJob(ctx, job)
		q.incrStats(ctx, JobStatusCompleted)
		log.Infof("[JobQueue] Job %s completed", job.ID)
		return
	}

	job.MarkAsFailed(err.Error())
	var perm *permanentError
	if errors.As(err, &perm) {
		job.MaxRetries = job.RetryCount
	}

	if !job.IsRetryable() {
		q.updateJob(ctx, job)
		q.incrStats(ctx, JobStatusFailed)
		log.Errorf("[JobQueue] Job %s failed for good after %d attempts: %v", job.ID, job.RetryCount, err)
		return
	}

	job.MarkAsRetrying()
	q.updateJob(ctx, job)
	delay := q.retryDelay * time.Duration(job.RetryCount)
	log.Warnf("[JobQueue] Job %s failed (attempt %d/%d), retrying in %s: %v", job.ID, job.RetryCount, job.MaxRetries, delay, err)

	id := job.ID
	time.AfterFunc(delay, func() {
		if err := q.client.LPush(context.Background(), JobQueueKey, id).Err(); err != nil {
			log.Errorf("[JobQueue] Could not requeue job %s: %v", id, err)
		}
	})
}

func (q *Queue) processRecurringRunJob(ctx context.Context, job *Job) error {
	if q.runner == nil {
		return permanent(recurrence.ErrNotConfigured)
	}
	payload, err := RecurringRunJobPayloadFromMap(job.Payload)
	if err != nil {
		return permanent(fmt.Errorf("invalid payload: %w", err))
	}

	resp, err := q.runner.Run(ctx, payload.Request())
	if err != nil {
		if recurrence.IsValidationError(err) {
			return permanent(err)
		}
		return err
	}

	result, err := json.Marshal(resp)
	if err != nil {
		return permanent(fmt.Errorf("encode run response: %w", err))
	}
	job.Result = result
	return nil
}

// permanentError marks failures that a retry cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

func (q *Queue) updateJob(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Cannot encode job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Cannot store job %s: %v", job.ID, err)
	}
}

func (q *Queue) requeueJob(ctx context.Context, job *Job) error {
	job.Status = JobStatusPending
	job.UpdatedAt = time.Now()
	q.updateJob(ctx, job)
	q.removeFromProcessing(ctx, job.ID)

	if err := q.client.RPush(ctx, JobQueueKey, job.ID).Err(); err != nil {
		log.Errorf("[JobQueue] Cannot requeue job %s: %v", job.ID, err)
		return err
	}
	return nil
}

func (q *Queue) removeFromProcessing(ctx context.Context, id string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, id).Err(); err != nil {
		log.Errorf("[JobQueue] Cannot drop job %s from processing list: %v", id, err)
	}
}

func (q *Queue) incrStats(ctx context.Context, status JobStatus) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), 1).Err(); err != nil {
		log.Errorf("[JobQueue] Cannot update job counters: %v", err)
	}
}

// GetJob loads a job. redis.Nil is returned for unknown or expired ids.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, JobKeyPrefix+id).Bytes()
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// GetJobStats returns how many jobs were queued, completed and failed.
func (q *Queue) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	raw, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}

	stats := make(map[JobStatus]int64, len(raw))
	for status, count := range raw {
		if n, err := strconv.ParseInt(count, 10, 64); err == nil {
			stats[JobStatus(status)] = n
		}
	}
	return stats, nil
}

func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobQueueKey).Result()
}

func (q *Queue) GetProcessingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobProcessingKey).Result()
}
