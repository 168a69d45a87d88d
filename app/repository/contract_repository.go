package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/InvoiceFox/app/models"
)

type contractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepository{db: db}
}

// ListActive returns active contracts matching filter, ordered by tenant then id.
func (r *contractRepository) ListActive(ctx context.Context, filter ContractFilter) ([]DueContract, error) {
	q := r.db.WithContext(ctx).
		Table("recurring_contracts AS rc").
		Select("rc.*, COALESCE(c.legal_name, '') AS client_name").
		Joins("LEFT JOIN clients AS c ON c.id = rc.client_id").
		Where("rc.status = ?", models.ContractStatusActive)

	if filter.RequireAutoIssue {
		q = q.Where("rc.auto_issue = ?", true)
	}
	if filter.ChargeDay != nil {
		q = q.Where("rc.charge_day = ?", *filter.ChargeDay)
	}
	if len(filter.IDs) > 0 {
		q = q.Where("rc.id IN ?", filter.IDs)
	}

	var contracts []DueContract
	if err := q.Order("rc.user_id ASC, rc.id ASC").Scan(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}
