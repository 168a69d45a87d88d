package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/InvoiceFox/app/models"
)

type alertSettingsRepository struct {
	db *gorm.DB
}

func NewAlertSettingsRepository(db *gorm.DB) AlertSettingsRepository {
	return &alertSettingsRepository{db: db}
}

func (r *alertSettingsRepository) GetByUser(ctx context.Context, userID uint) (*models.AlertSettings, error) {
	var s models.AlertSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *alertSettingsRepository) Upsert(ctx context.Context, settings *models.AlertSettings) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email",
			"email_enabled",
			"webhook_url",
			"webhook_enabled",
			"updated_at",
		}),
	}).Create(settings).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return db.Where("user_id = ?", settings.UserID).First(settings).Error
}
