package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/InvoiceFox/app/repository"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/usercontext"
)

type ExecutionLogController struct {
	logs repository.ExecutionLogRepository
}

func NewExecutionLogController(logs repository.ExecutionLogRepository) *ExecutionLogController {
	return &ExecutionLogController{logs: logs}
}

// HandleList returns the tenant's execution logs, newest first.
func (lc *ExecutionLogController) HandleList(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	offset, limit := parsePagination(c)

	logs, total, err := lc.logs.ListByUser(c.UserContext(), userID, offset, limit)
	if err != nil {
		log.Errorf("[ExecutionLogController] Listing logs for user %d failed: %v", userID, err)
		return internalError(c, "failed to load execution logs")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"logs":    logs,
		"total":   total,
		"offset":  offset,
		"limit":   limit,
	})
}
