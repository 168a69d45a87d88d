package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/InvoiceFox/app/models"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/env"
)

// testDB connects to TEST_DB_DSN and skips when no database is configured.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := env.GetEnv("TEST_DB_DSN", "")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Client{},
		&models.RecurringContract{},
		&models.Invoice{},
		&models.InvoiceAuditEvent{},
		&models.ExecutionLog{},
		&models.AlertSettings{},
	))
	for _, table := range []string{"invoice_audit_events", "invoices", "recurring_contracts", "clients", "recurring_execution_logs", "recurring_alert_settings"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

func TestContractRepository_ListActiveFilters(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	client := models.Client{UserID: 1, LegalName: "Acme"}
	require.NoError(t, db.Create(&client).Error)

	due := models.RecurringContract{UserID: 1, ClientID: client.ID, Name: "Hosting", Amount: decimal.NewFromInt(100), ChargeDay: 5, AutoIssue: true, Status: models.ContractStatusActive}
	other := models.RecurringContract{UserID: 1, ClientID: client.ID, Name: "Support", Amount: decimal.NewFromInt(50), ChargeDay: 6, AutoIssue: true, Status: models.ContractStatusActive}
	manual := models.RecurringContract{UserID: 1, ClientID: client.ID, Name: "Manual", Amount: decimal.NewFromInt(20), ChargeDay: 5, AutoIssue: false, Status: models.ContractStatusActive}
	paused := models.RecurringContract{UserID: 1, ClientID: client.ID, Name: "Old", Amount: decimal.NewFromInt(10), ChargeDay: 5, AutoIssue: true, Status: models.ContractStatusPaused}
	require.NoError(t, db.Create(&due).Error)
	require.NoError(t, db.Create(&other).Error)
	require.NoError(t, db.Create(&paused).Error)
	require.NoError(t, db.Create(&manual).Error)

	var stored models.RecurringContract
	require.NoError(t, db.First(&stored, manual.ID).Error)
	assert.False(t, stored.AutoIssue)

	repo := NewContractRepository(db)
	day := 5
	got, err := repo.ListActive(ctx, ContractFilter{ChargeDay: &day, RequireAutoIssue: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
	assert.Equal(t, "Acme", got[0].ClientName)

	got, err = repo.ListActive(ctx, ContractFilter{IDs: []uint{other.ID, manual.ID}})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestInvoiceRepository_UniquePerPeriod(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewInvoiceRepository(db)

	contractID := uint(42)
	period := "2025-03"
	emission := time.Date(2025, 3, 5, 6, 0, 0, 0, time.UTC)

	first := &models.Invoice{UserID: 1, ClientID: 1, RecurringContractID: &contractID, BillingPeriod: &period, Amount: decimal.NewFromInt(10), EmissionDate: emission}
	require.NoError(t, repo.CreateDraft(ctx, first))
	assert.Equal(t, models.InvoiceStatusDraft, first.Status)

	dup := &models.Invoice{UserID: 1, ClientID: 1, RecurringContractID: &contractID, BillingPeriod: &period, Amount: decimal.NewFromInt(10), EmissionDate: emission}
	assert.ErrorIs(t, repo.CreateDraft(ctx, dup), ErrInvoiceAlreadyExists)

	found, err := repo.FindForContractInPeriod(ctx, contractID,
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	none, err := repo.FindForContractInPeriod(ctx, contractID,
		time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAlertSettingsRepository_Upsert(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewAlertSettingsRepository(db)

	none, err := repo.GetByUser(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, repo.Upsert(ctx, &models.AlertSettings{UserID: 7, Email: "a@example.com", EmailEnabled: true}))
	require.NoError(t, repo.Upsert(ctx, &models.AlertSettings{UserID: 7, Email: "b@example.com", EmailEnabled: true}))

	got, err := repo.GetByUser(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b@example.com", got.Email)
}
