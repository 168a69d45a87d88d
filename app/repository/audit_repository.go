package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/InvoiceFox/app/models"
)

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, event *models.InvoiceAuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
