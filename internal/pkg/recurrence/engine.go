package recurrence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/ManuelReschke/InvoiceFox/app/models"
	"github.com/ManuelReschke/InvoiceFox/app/repository"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/alerting"
)

// bookkeepingTimeout bounds log, archive and alert work after the run deadline.
const bookkeepingTimeout = 30 * time.Second

// AlertDispatcher receives one alert per tenant with failed contracts.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert alerting.FailureAlert)
}

// Locker serializes work on one contract and period across instances.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// Archiver stores the JSON report of a run.
type Archiver interface {
	ArchiveRun(ctx context.Context, runID string, date time.Time, body []byte) error
}

// Recorder counts run outcomes per day.
type Recorder interface {
	Record(ctx context.Context, day time.Time, summary models.RunSummary) error
}

// Deps are the collaborators of the engine. Contracts and Invoices are
// required, everything else is optional.
type Deps struct {
	Contracts repository.ContractRepository
	Invoices  repository.InvoiceRepository
	Audit     repository.AuditRepository
	Logs      repository.ExecutionLogRepository
	Alerts    AlertDispatcher
	Locker    Locker
	Archiver  Archiver
	Recorder  Recorder
}

type Engine struct {
	deps Deps
	cfg  Config
	now  func() time.Time
}

func NewEngine(deps Deps, cfg Config) *Engine {
	return &Engine{
		deps: deps,
		cfg:  cfg.normalize(),
		now:  time.Now,
	}
}

// tenantBucket collects the results of one tenant in input order.
type tenantBucket struct {
	userID  uint
	results []models.ContractProcessingResult
	summary models.RunSummary
}

// Run generates the draft invoices due for req. Only validation and
// infrastructure errors are returned; per-contract failures are reported in
// the response.
func (e *Engine) Run(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sel, err := resolveSelection(req, e.now())
	if err != nil {
		return nil, err
	}
	if e.deps.Contracts == nil || e.deps.Invoices == nil {
		return nil, ErrNotConfigured
	}

	runID := uuid.NewString()
	source := req.Source
	if source == "" {
		source = sel.Mode
	}

	runCtx := ctx
	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	contracts, err := e.deps.Contracts.ListActive(runCtx, sel.Filter)
	if err != nil {
		return nil, fmt.Errorf("list due contracts: %w", err)
	}

	resp := &Response{
		Success:    true,
		RunID:      runID,
		Mode:       sel.Mode,
		Details:    []Detail{},
		TargetDate: sel.Date,
		Results:    []models.ContractProcessingResult{},
	}

	if len(contracts) == 0 {
		resp.Message = "No contracts due for processing"
		log.Infof("[Recurrence] Run %s (%s): no contracts due for %s", runID, sel.Mode, sel.Date.Format(targetDateLayout))
		return resp, nil
	}

	period := PeriodFor(sel.Date)
	log.Infof("[Recurrence] Run %s (%s): processing %d contracts for period %s", runID, sel.Mode, len(contracts), period.Label)

	results := make([]models.ContractProcessingResult, len(contracts))
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Workers)
	for i := range contracts {
		g.Go(func() error {
			results[i] = e.processContract(runCtx, contracts[i], sel.Date, period, runID)
			return nil
		})
	}
	_ = g.Wait()

	buckets := groupByTenant(results)
	for _, r := range results {
		resp.Summary.Add(r.Status)
		resp.Details = append(resp.Details, detailFor(r))
	}
	resp.Results = results
	resp.Processed = resp.Summary.Total
	resp.Success = resp.Summary.Errors == 0
	resp.Message = fmt.Sprintf("Processed %d contracts: %d created, %d skipped, %d errors",
		resp.Summary.Total, resp.Summary.Success, resp.Summary.Skipped, resp.Summary.Errors)

	// Bookkeeping outlives the run deadline so committed invoices are always logged.
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancel()

	logIDs := e.writeExecutionLogs(bctx, buckets, runID, source, sel.Date)
	e.archive(bctx, resp)
	e.record(bctx, sel.Date, resp.Summary)
	e.dispatchAlerts(bctx, buckets, logIDs, runID, sel.Date, resp.Summary)

	log.Infof("[Recurrence] Run %s finished: %s", runID, resp.Message)
	return resp, nil
}

func (e *Engine) processContract(ctx context.Context, c repository.DueContract, date time.Time, period Period, runID string) models.ContractProcessingResult {
	res := models.ContractProcessingResult{
		ContractID:   c.ID,
		ContractName: c.Name,
		UserID:       c.UserID,
		ClientName:   c.ClientName,
		Amount:       c.Amount,
		IsVIP:        c.IsVIP,
		TargetDate:   date,
	}

	if err := ctx.Err(); err != nil {
		return fail(res, err)
	}

	if e.deps.Locker != nil {
		key := fmt.Sprintf("%d:%s", c.ID, period.Label)
		release, acquired, err := e.deps.Locker.Acquire(ctx, key, e.cfg.LockTTL)
		switch {
		case err != nil:
			log.Warnf("[Recurrence] Lock for contract %d unavailable, relying on unique index: %v", c.ID, err)
		case !acquired:
			return skip(res, MessageLocked)
		default:
			defer release()
		}
	}

	existing, err := e.deps.Invoices.FindForContractInPeriod(ctx, c.ID, period.Start, period.End)
	if err != nil {
		return fail(res, fmt.Errorf("check existing invoice: %w", err))
	}
	if existing != nil {
		res.InvoiceID = &existing.ID
		return skip(res, MessageAlreadyIssued)
	}

	contractID := c.ID
	label := period.Label
	inv := &models.Invoice{
		UserID:              c.UserID,
		ClientID:            c.ClientID,
		RecurringContractID: &contractID,
		BillingPeriod:       &label,
		Amount:              c.Amount,
		ServiceDescription:  c.ServiceDescription,
		EmissionDate:        date,
		Status:              models.InvoiceStatusDraft,
	}
	if err := e.deps.Invoices.CreateDraft(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrInvoiceAlreadyExists) {
			return skip(res, MessageAlreadyIssued)
		}
		return fail(res, err)
	}

	res.Status = models.ContractResultSuccess
	res.InvoiceID = &inv.ID
	e.writeAudit(ctx, c, inv, runID)
	return res
}

func (e *Engine) writeAudit(ctx context.Context, c repository.DueContract, inv *models.Invoice, runID string) {
	if e.deps.Audit == nil {
		return
	}
	event := &models.InvoiceAuditEvent{
		InvoiceID: inv.ID,
		EventType: models.AuditEventAutoGenerated,
		Message:   fmt.Sprintf("Draft invoice generated automatically from recurring contract %q", c.Name),
		Payload: datatypes.NewJSONType(models.InvoiceAuditPayload{
			ContractID:   c.ID,
			ContractName: c.Name,
			ChargeDay:    c.ChargeDay,
			GeneratedAt:  e.now().UTC(),
			RunID:        runID,
		}),
	}
	// the invoice is committed; an audit failure must not change the outcome
	if err := e.deps.Audit.Create(context.WithoutCancel(ctx), event); err != nil {
		log.Errorf("[Recurrence] Audit event for invoice %d failed: %v", inv.ID, err)
	}
}

func (e *Engine) writeExecutionLogs(ctx context.Context, buckets []*tenantBucket, runID, source string, date time.Time) map[uint]uint {
	ids := make(map[uint]uint, len(buckets))
	if e.deps.Logs == nil {
		return ids
	}
	for _, b := range buckets {
		entry := &models.ExecutionLog{
			UserID:               b.userID,
			RunID:                runID,
			Source:               source,
			ExecutionDate:        startOfDay(date),
			Status:               models.ExecutionStatusSuccess,
			InvoicesCreatedCount: b.summary.Success,
			AffectedContracts:    datatypes.JSONSlice[models.ContractProcessingResult](b.results),
		}
		if b.summary.Errors > 0 {
			entry.Status = models.ExecutionStatusError
			msg := errorSummary(b)
			entry.ErrorMessage = &msg
		}
		if err := e.deps.Logs.Create(ctx, entry); err != nil {
			log.Errorf("[Recurrence] Execution log for user %d failed: %v", b.userID, err)
			continue
		}
		ids[b.userID] = entry.ID
	}
	return ids
}

func (e *Engine) archive(ctx context.Context, resp *Response) {
	if e.deps.Archiver == nil {
		return
	}
	body, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("[Recurrence] Encoding run report %s failed: %v", resp.RunID, err)
		return
	}
	if err := e.deps.Archiver.ArchiveRun(ctx, resp.RunID, resp.TargetDate, body); err != nil {
		log.Warnf("[Recurrence] Archiving run report %s failed: %v", resp.RunID, err)
	}
}

func (e *Engine) record(ctx context.Context, date time.Time, summary models.RunSummary) {
	if e.deps.Recorder == nil {
		return
	}
	if err := e.deps.Recorder.Record(ctx, date, summary); err != nil {
		log.Warnf("[Recurrence] Recording counters failed: %v", err)
	}
}

func (e *Engine) dispatchAlerts(ctx context.Context, buckets []*tenantBucket, logIDs map[uint]uint, runID string, date time.Time, summary models.RunSummary) {
	if e.deps.Alerts == nil {
		return
	}
	for _, b := range buckets {
		if b.summary.Errors == 0 {
			continue
		}
		failed := make([]models.ContractProcessingResult, 0, b.summary.Errors)
		for _, r := range b.results {
			if r.Status == models.ContractResultError {
				failed = append(failed, r)
			}
		}
		e.deps.Alerts.Dispatch(ctx, alerting.FailureAlert{
			UserID:         b.userID,
			ExecutionLogID: logIDs[b.userID],
			RunID:          runID,
			ExecutionDate:  startOfDay(date),
			Failed:         failed,
			Summary:        summary,
		})
	}
}

// groupByTenant buckets results by tenant in order of first appearance.
func groupByTenant(results []models.ContractProcessingResult) []*tenantBucket {
	var buckets []*tenantBucket
	index := make(map[uint]*tenantBucket)
	for _, r := range results {
		b, ok := index[r.UserID]
		if !ok {
			b = &tenantBucket{userID: r.UserID}
			index[r.UserID] = b
			buckets = append(buckets, b)
		}
		b.results = append(b.results, r)
		b.summary.Add(r.Status)
	}
	return buckets
}

func errorSummary(b *tenantBucket) string {
	parts := make([]string, 0, b.summary.Errors)
	for _, r := range b.results {
		if r.Status == models.ContractResultError {
			parts = append(parts, fmt.Sprintf("%s: %s", r.DisplayName(), r.Error))
		}
	}
	return fmt.Sprintf("%d of %d contracts failed: %s", b.summary.Errors, b.summary.Total, strings.Join(parts, "; "))
}

func detailFor(r models.ContractProcessingResult) Detail {
	d := Detail{Client: r.DisplayName(), Status: r.Status, Message: r.Error}
	if r.Status == models.ContractResultSuccess && r.InvoiceID != nil {
		d.Message = fmt.Sprintf("Draft invoice #%d created", *r.InvoiceID)
	}
	return d
}

func fail(res models.ContractProcessingResult, err error) models.ContractProcessingResult {
	res.Status = models.ContractResultError
	res.Error = err.Error()
	return res
}

func skip(res models.ContractProcessingResult, msg string) models.ContractProcessingResult {
	res.Status = models.ContractResultSkipped
	res.Error = msg
	return res
}
