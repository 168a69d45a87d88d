package recurrence

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/InvoiceFox/app/models"
	"github.com/ManuelReschke/InvoiceFox/app/repository"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/alerting"
)

// fakeContracts applies ContractFilter the way the SQL query does.
type fakeContracts struct {
	mu        sync.Mutex
	contracts []repository.DueContract
	calls     []repository.ContractFilter
	err       error
}

func (f *fakeContracts) ListActive(_ context.Context, filter repository.ContractFilter) ([]repository.DueContract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filter)
	if f.err != nil {
		return nil, f.err
	}
	var out []repository.DueContract
	for _, c := range f.contracts {
		if !c.IsActive() {
			continue
		}
		if filter.RequireAutoIssue && !c.AutoIssue {
			continue
		}
		if filter.ChargeDay != nil && c.ChargeDay != *filter.ChargeDay {
			continue
		}
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, c.ID) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// fakeLedger enforces the (contract, billing period) unique index.
type fakeLedger struct {
	mu       sync.Mutex
	nextID   uint
	invoices []models.Invoice
	failFor  map[uint]error
	findErr  error
	// hideFromFind makes FindForContractInPeriod miss, simulating a concurrent insert.
	hideFromFind bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{failFor: map[uint]error{}}
}

func (f *fakeLedger) FindForContractInPeriod(_ context.Context, contractID uint, from, to time.Time) (*models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.hideFromFind {
		return nil, nil
	}
	for i := range f.invoices {
		inv := f.invoices[i]
		period := Period{Start: from, End: to}
		if inv.RecurringContractID != nil && *inv.RecurringContractID == contractID && period.Contains(inv.EmissionDate) {
			return &inv, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) CreateDraft(_ context.Context, invoice *models.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !invoice.IsRecurring() {
		return errors.New("fake ledger only stores recurring invoices")
	}
	if err, ok := f.failFor[*invoice.RecurringContractID]; ok {
		return err
	}
	for _, inv := range f.invoices {
		if *inv.RecurringContractID == *invoice.RecurringContractID && *inv.BillingPeriod == *invoice.BillingPeriod {
			return repository.ErrInvoiceAlreadyExists
		}
	}
	f.nextID++
	invoice.ID = f.nextID
	f.invoices = append(f.invoices, *invoice)
	return nil
}

func (f *fakeLedger) countFor(contractID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, inv := range f.invoices {
		if *inv.RecurringContractID == contractID {
			n++
		}
	}
	return n
}

type fakeAudit struct {
	mu     sync.Mutex
	events []models.InvoiceAuditEvent
	err    error
}

func (f *fakeAudit) Create(_ context.Context, event *models.InvoiceAuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *event)
	return nil
}

type fakeLogs struct {
	mu     sync.Mutex
	nextID uint
	logs   []models.ExecutionLog
	err    error
}

func (f *fakeLogs) Create(_ context.Context, l *models.ExecutionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.nextID++
	l.ID = f.nextID
	f.logs = append(f.logs, *l)
	return nil
}

func (f *fakeLogs) MarkAlertSent(_ context.Context, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.logs {
		if f.logs[i].ID == id {
			f.logs[i].AlertSent = true
			f.logs[i].AlertSentAt = &at
		}
	}
	return nil
}

func (f *fakeLogs) ListByUser(_ context.Context, userID uint, offset, limit int) ([]models.ExecutionLog, int64, error) {
	var out []models.ExecutionLog
	for _, l := range f.logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

type fakeAlerts struct {
	mu     sync.Mutex
	alerts []alerting.FailureAlert
}

func (f *fakeAlerts) Dispatch(_ context.Context, alert alerting.FailureAlert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[key] {
		return nil, false, nil
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, true, nil
}

type fakeArchiver struct {
	runIDs []string
	err    error
}

func (f *fakeArchiver) ArchiveRun(_ context.Context, runID string, _ time.Time, body []byte) error {
	f.runIDs = append(f.runIDs, runID)
	return f.err
}

type fakeRecorder struct {
	summaries []models.RunSummary
}

func (f *fakeRecorder) Record(_ context.Context, _ time.Time, s models.RunSummary) error {
	f.summaries = append(f.summaries, s)
	return nil
}

var errInsert = errors.New("insert failed: client does not exist")

func contract(id, userID uint, chargeDay int, name string) repository.DueContract {
	return repository.DueContract{
		RecurringContract: models.RecurringContract{
			ID:        id,
			UserID:    userID,
			ClientID:  id * 10,
			Name:      name,
			Amount:    decimal.RequireFromString("199.90"),
			ChargeDay: chargeDay,
			AutoIssue: true,
			Status:    models.ContractStatusActive,
		},
		ClientName: name + " Ltda",
	}
}
