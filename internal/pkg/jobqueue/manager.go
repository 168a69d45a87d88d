package jobqueue

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/InvoiceFox/internal/pkg/env"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/recurrence"
)

const (
	// ScheduledClaimPrefix marks a UTC day whose scheduled run was claimed by an instance
	ScheduledClaimPrefix = "recurrence:scheduled:"
	scheduledClaimTTL    = 48 * time.Hour

	SourceScheduler = "scheduler"
)

// ErrQueueUnavailable is returned when no Redis client was configured.
var ErrQueueUnavailable = errors.New("job queue is not available")

// ManagerConfig controls background work of the manager
type ManagerConfig struct {
	Workers          int
	SchedulerEnabled bool
	ScheduleHour     int
	TickInterval     time.Duration
}

func LoadManagerConfig(scheduleHour int) ManagerConfig {
	return ManagerConfig{
		Workers:          env.GetIntEnv("JOBQUEUE_WORKERS", 2),
		SchedulerEnabled: env.GetBoolEnv("RECURRENCE_SCHEDULER_ENABLED", true),
		ScheduleHour:     scheduleHour,
		TickInterval:     env.GetDurationEnv("RECURRENCE_SCHEDULER_TICK", time.Minute),
	}
}

// Manager owns the job queue and the daily scheduler tick
type Manager struct {
	queue          *Queue
	client         redis.UniversalClient
	runner         Runner
	cfg            ManagerConfig
	scheduleTicker *time.Ticker
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool
	schedMu        sync.Mutex // guards lastScheduled
	lastScheduled  string
	instanceID     string
	now            func() time.Time
}

var (
	globalManager *Manager
	managerMu     sync.Mutex
)

// NewManager creates a manager. client may be nil, which disables the queue
// and the cross-instance day claim.
func NewManager(client redis.UniversalClient, runner Runner, cfg ManagerConfig) *Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	host, _ := os.Hostname()
	m := &Manager{
		client:     client,
		runner:     runner,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		instanceID: host + "/" + uuid.NewString(),
		now:        time.Now,
	}
	if client != nil {
		m.queue = NewQueue(client, runner, cfg.Workers)
	}
	return m
}

// SetManager registers the process wide manager
func SetManager(m *Manager) {
	managerMu.Lock()
	defer managerMu.Unlock()
	globalManager = m
}

// GetManager returns the process wide manager or nil
func GetManager() *Manager {
	managerMu.Lock()
	defer managerMu.Unlock()
	return globalManager
}

// GetQueue returns the managed job queue, nil without Redis
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	if m.queue != nil {
		m.queue.Start()
	}

	if m.cfg.SchedulerEnabled && m.runner != nil {
		m.scheduleTicker = time.NewTicker(m.cfg.TickInterval)
		m.wg.Add(1)
		go m.scheduleWorker()
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.scheduleTicker != nil {
		m.scheduleTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	if m.queue != nil {
		m.queue.Stop()
	}

	log.Info("[JobQueue Manager] Stopped successfully")
}

// scheduleWorker triggers the daily scheduled run
func (m *Manager) scheduleWorker() {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Scheduler running (hour=%02d:00 UTC, tick=%s)", m.cfg.ScheduleHour, m.cfg.TickInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Scheduler stopping")
			return
		case <-m.scheduleTicker.C:
			if _, err := m.RunScheduledIfDue(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Scheduled run failed: %v", err)
			}
		}
	}
}

// RunScheduledIfDue runs the scheduled engine pass once per UTC day after the
// configured hour. Only the instance that claims the day in Redis runs it. A
// failed run releases the claim so the next tick retries the same day.
func (m *Manager) RunScheduledIfDue(ctx context.Context) (bool, error) {
	now := m.now().UTC()
	if now.Hour() < m.cfg.ScheduleHour {
		return false, nil
	}
	day := now.Format("2006-01-02")

	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	if m.lastScheduled == day {
		return false, nil
	}

	claimKey := ScheduledClaimPrefix + day
	claimed := false
	if m.client != nil {
		ok, err := m.client.SetNX(ctx, claimKey, m.instanceID, scheduledClaimTTL).Result()
		switch {
		case err != nil:
			// the unique invoice index still prevents duplicates
			log.Warnf("[JobQueue Manager] Could not claim scheduled run for %s, running anyway: %v", day, err)
		case !ok:
			log.Debugf("[JobQueue Manager] Scheduled run for %s already claimed by another instance", day)
			return false, nil
		default:
			claimed = true
		}
	}

	resp, err := m.runner.Run(ctx, recurrence.Request{Source: SourceScheduler})
	if err != nil {
		if claimed {
			m.releaseClaim(claimKey)
		}
		return true, err
	}

	m.lastScheduled = day
	log.Infof("[JobQueue Manager] Scheduled run %s: %s", resp.RunID, resp.Message)
	return true, nil
}

// releaseClaim deletes the day claim if this instance still owns it.
func (m *Manager) releaseClaim(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseClaimScript.Run(ctx, m.client, []string{key}, m.instanceID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		log.Errorf("[JobQueue Manager] Could not release scheduled claim %s: %v", key, err)
	}
}

var releaseClaimScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// EnqueueRecurringRun queues an asynchronous engine run
func (m *Manager) EnqueueRecurringRun(ctx context.Context, req recurrence.Request) (*Job, error) {
	if m.queue == nil {
		return nil, ErrQueueUnavailable
	}
	return m.queue.EnqueueRecurringRun(ctx, req)
}

// GetJob returns a queued or finished job
func (m *Manager) GetJob(ctx context.Context, id string) (*Job, error) {
	if m.queue == nil {
		return nil, ErrQueueUnavailable
	}
	return m.queue.GetJob(ctx, id)
}

// QueueStats summarizes the queue for operators.
type QueueStats struct {
	Running    bool                `json:"running"`
	Pending    int64               `json:"pending"`
	Processing int64               `json:"processing"`
	ByStatus   map[JobStatus]int64 `json:"by_status"`
}

// Stats reports queue sizes and the per-status job counters.
func (m *Manager) Stats(ctx context.Context) (*QueueStats, error) {
	if m.queue == nil {
		return nil, ErrQueueUnavailable
	}

	stats := &QueueStats{Running: m.IsRunning()}
	var err error
	if stats.Pending, err = m.queue.GetQueueSize(ctx); err != nil {
		return nil, err
	}
	if stats.Processing, err = m.queue.GetProcessingSize(ctx); err != nil {
		return nil, err
	}
	if stats.ByStatus, err = m.queue.GetJobStats(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
