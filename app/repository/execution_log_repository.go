package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/InvoiceFox/app/models"
)

type executionLogRepository struct {
	db *gorm.DB
}

func NewExecutionLogRepository(db *gorm.DB) ExecutionLogRepository {
	return &executionLogRepository{db: db}
}

func (r *executionLogRepository) Create(ctx context.Context, log *models.ExecutionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *executionLogRepository) MarkAlertSent(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ExecutionLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"alert_sent":    true,
			"alert_sent_at": at,
		}).Error
}

// ListByUser returns a page of logs, newest first, plus the total count.
func (r *executionLogRepository) ListByUser(ctx context.Context, userID uint, offset, limit int) ([]models.ExecutionLog, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&models.ExecutionLog{}).Where("user_id = ?", userID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.ExecutionLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("execution_date DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&logs).Error
	return logs, total, err
}
