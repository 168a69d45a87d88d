package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/InvoiceFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/recurrence"
)

// RecurrenceRunner executes one run synchronously.
type RecurrenceRunner interface {
	Run(ctx context.Context, req recurrence.Request) (*recurrence.Response, error)
}

// RecurringJobs queues runs and reports on them.
type RecurringJobs interface {
	EnqueueRecurringRun(ctx context.Context, req recurrence.Request) (*jobqueue.Job, error)
	GetJob(ctx context.Context, id string) (*jobqueue.Job, error)
	Stats(ctx context.Context) (*jobqueue.QueueStats, error)
}

// RunStats reads the per-day run counters.
type RunStats interface {
	Get(ctx context.Context, day time.Time) (*counter.DayStats, error)
}

type RecurrenceController struct {
	runner RecurrenceRunner
	jobs   RecurringJobs
	stats  RunStats
}

// NewRecurrenceController wires the run endpoints. jobs and stats may be nil
// when Redis is not available.
func NewRecurrenceController(runner RecurrenceRunner, jobs RecurringJobs, stats RunStats) *RecurrenceController {
	return &RecurrenceController{runner: runner, jobs: jobs, stats: stats}
}

// HandleRun executes a run and returns its report.
func (rc *RecurrenceController) HandleRun(c *fiber.Ctx) error {
	var req recurrence.Request
	if err := decodeOptionalJSON(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := rc.runner.Run(c.UserContext(), req)
	if err != nil {
		if recurrence.IsValidationError(err) {
			return badRequest(c, err.Error())
		}
		log.Errorf("[RecurrenceController] Run failed: %v", err)
		return c.Status(InfrastructureFailureStatus).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(resp)
}

// RunPreflightPath is answered by HandleRunOptions instead of the cors middleware.
const RunPreflightPath = "/api/v1/recurring-invoices/run"

// HandleRunOptions answers CORS preflight requests with an empty 200.
func (rc *RecurrenceController) HandleRunOptions(c *fiber.Ctx) error {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowMethods, "POST, OPTIONS")
	c.Set(fiber.HeaderAccessControlAllowHeaders, "Origin, Content-Type, Accept, Authorization")
	c.Status(fiber.StatusOK)
	return nil
}

// HandleEnqueue validates a request and queues it for a background worker.
func (rc *RecurrenceController) HandleEnqueue(c *fiber.Ctx) error {
	if rc.jobs == nil {
		return unavailable(c, jobqueue.ErrQueueUnavailable.Error())
	}

	var req recurrence.Request
	if err := decodeOptionalJSON(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	job, err := rc.jobs.EnqueueRecurringRun(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, jobqueue.ErrQueueUnavailable) {
			return unavailable(c, err.Error())
		}
		log.Errorf("[RecurrenceController] Enqueue failed: %v", err)
		return c.Status(InfrastructureFailureStatus).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"job_id":  job.ID,
	})
}

// HandleJobStatus returns a queued job including the stored run report.
func (rc *RecurrenceController) HandleJobStatus(c *fiber.Ctx) error {
	if rc.jobs == nil {
		return unavailable(c, jobqueue.ErrQueueUnavailable.Error())
	}

	id := c.Params("id")
	if id == "" {
		return badRequest(c, "job id is required")
	}

	job, err := rc.jobs.GetJob(c.UserContext(), id)
	switch {
	case errors.Is(err, redis.Nil):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "job not found"})
	case errors.Is(err, jobqueue.ErrQueueUnavailable):
		return unavailable(c, err.Error())
	case err != nil:
		log.Errorf("[RecurrenceController] Loading job %s failed: %v", id, err)
		return internalError(c, "failed to load job")
	}

	return c.JSON(fiber.Map{"success": true, "job": job})
}

// HandleQueueStats reports queue sizes and job status counters.
func (rc *RecurrenceController) HandleQueueStats(c *fiber.Ctx) error {
	if rc.jobs == nil {
		return unavailable(c, jobqueue.ErrQueueUnavailable.Error())
	}

	stats, err := rc.jobs.Stats(c.UserContext())
	if err != nil {
		if errors.Is(err, jobqueue.ErrQueueUnavailable) {
			return unavailable(c, err.Error())
		}
		log.Errorf("[RecurrenceController] Loading queue stats failed: %v", err)
		return internalError(c, "failed to load queue stats")
	}
	return c.JSON(fiber.Map{"success": true, "queue": stats})
}

// HandleStats returns the run counters of one day, today by default.
func (rc *RecurrenceController) HandleStats(c *fiber.Ctx) error {
	if rc.stats == nil {
		return unavailable(c, "run counters are not available")
	}

	day := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := recurrence.ParseTargetDate(raw)
		if err != nil {
			return badRequest(c, err.Error())
		}
		day = parsed
	}

	stats, err := rc.stats.Get(c.UserContext(), day)
	if err != nil {
		log.Errorf("[RecurrenceController] Loading counters failed: %v", err)
		return internalError(c, "failed to load run counters")
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats})
}
