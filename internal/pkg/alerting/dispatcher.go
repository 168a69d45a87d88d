package alerting

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/InvoiceFox/app/models"
	"github.com/ManuelReschke/InvoiceFox/app/repository"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/mail"
)

var (
	ErrEmailNotConfigured   = errors.New("email channel is not configured")
	ErrWebhookNotConfigured = errors.New("webhook channel is not configured")
	ErrNoChannelEnabled     = errors.New("no alert channel enabled")
)

var testAlertValidator = validator.New()

// Validate checks the explicit targets of a test alert.
func (t *TestAlert) Validate() error {
	t.Email = strings.TrimSpace(t.Email)
	t.WebhookURL = strings.TrimSpace(t.WebhookURL)
	if !t.EmailEnabled && !t.WebhookEnabled {
		return ErrNoChannelEnabled
	}
	return testAlertValidator.Struct(t)
}

// Dispatcher fans failure alerts out to the channels a tenant enabled.
// Delivery errors are logged and never returned.
type Dispatcher struct {
	settings *SettingsStore
	mailer   mail.Mailer
	webhook  *WebhookSender
	renderer *EmailRenderer
	logs     repository.ExecutionLogRepository
	now      func() time.Time
}

// NewDispatcher wires the channels. mailer, webhook and logs may be nil.
func NewDispatcher(settings *SettingsStore, mailer mail.Mailer, webhook *WebhookSender, logs repository.ExecutionLogRepository) *Dispatcher {
	renderer, err := NewEmailRenderer()
	if err != nil {
		log.Errorf("[Alerts] Email templates unavailable, email channel disabled: %v", err)
	}
	return &Dispatcher{
		settings: settings,
		mailer:   mailer,
		webhook:  webhook,
		renderer: renderer,
		logs:     logs,
		now:      time.Now,
	}
}

// Settings exposes the settings store used by the dispatcher.
func (d *Dispatcher) Settings() *SettingsStore {
	return d.settings
}

// Dispatch delivers alert on every enabled channel and marks the execution
// log when at least one channel succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, alert FailureAlert) {
	settings, err := d.settings.Get(ctx, alert.UserID)
	if err != nil {
		log.Errorf("[Alerts] Loading settings for user %d failed: %v", alert.UserID, err)
		return
	}
	if !settings.HasActiveChannel() {
		return
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	deliver := func(channel string, send func() error) {
		defer wg.Done()
		if err := send(); err != nil {
			log.Errorf("[Alerts] %s alert for user %d failed: %v", channel, alert.UserID, err)
			return
		}
		log.Infof("[Alerts] %s alert sent for user %d (run %s)", channel, alert.UserID, alert.RunID)
		mu.Lock()
		delivered++
		mu.Unlock()
	}

	if settings.EmailActive() {
		wg.Add(1)
		go deliver("Email", func() error { return d.sendFailureEmail(ctx, settings.Email, alert) })
	}
	if settings.WebhookActive() {
		wg.Add(1)
		go deliver("Webhook", func() error { return d.sendFailureWebhook(ctx, settings.WebhookURL, alert) })
	}
	wg.Wait()

	if delivered == 0 || alert.ExecutionLogID == 0 || d.logs == nil {
		return
	}
	if err := d.logs.MarkAlertSent(ctx, alert.ExecutionLogID, d.now().UTC()); err != nil {
		log.Errorf("[Alerts] Marking execution log %d as alerted failed: %v", alert.ExecutionLogID, err)
	}
}

// SendTest attempts delivery to explicit targets and reports each channel.
func (d *Dispatcher) SendTest(ctx context.Context, t TestAlert) TestAlertResult {
	var res TestAlertResult
	now := d.now().UTC()

	if t.EmailEnabled && t.Email != "" {
		res.Email.Attempted = true
		if err := d.sendTestEmail(ctx, t.Email, now); err != nil {
			res.Email.Error = err.Error()
		} else {
			res.Email.Sent = true
		}
	}

	if t.WebhookEnabled && t.WebhookURL != "" {
		res.Webhook.Attempted = true
		err := ErrWebhookNotConfigured
		if d.webhook != nil {
			err = d.webhook.Send(ctx, t.WebhookURL, WebhookPayload{
				Type:            WebhookTypeTest,
				UserID:          t.UserID,
				ExecutionDate:   now.Format("2006-01-02"),
				FailedContracts: []models.ContractProcessingResult{},
			})
		}
		if err != nil {
			res.Webhook.Error = err.Error()
		} else {
			res.Webhook.Sent = true
		}
	}

	attempted := res.Email.Attempted || res.Webhook.Attempted
	res.Success = attempted &&
		(!res.Email.Attempted || res.Email.Sent) &&
		(!res.Webhook.Attempted || res.Webhook.Sent)
	return res
}

func (d *Dispatcher) sendFailureEmail(ctx context.Context, to string, alert FailureAlert) error {
	if d.mailer == nil || d.renderer == nil {
		return ErrEmailNotConfigured
	}
	subject, body, err := d.renderer.RenderFailure(alert)
	if err != nil {
		return err
	}
	return d.mailer.Send(ctx, to, subject, body)
}

func (d *Dispatcher) sendFailureWebhook(ctx context.Context, url string, alert FailureAlert) error {
	if d.webhook == nil {
		return ErrWebhookNotConfigured
	}
	return d.webhook.Send(ctx, url, WebhookPayload{
		Type:            WebhookTypeFailed,
		UserID:          alert.UserID,
		RunID:           alert.RunID,
		ExecutionDate:   alert.ExecutionDate.Format("2006-01-02"),
		Summary:         alert.Summary,
		FailedContracts: alert.Failed,
	})
}

func (d *Dispatcher) sendTestEmail(ctx context.Context, to string, at time.Time) error {
	if d.mailer == nil || d.renderer == nil {
		return ErrEmailNotConfigured
	}
	subject, body, err := d.renderer.RenderTest(at)
	if err != nil {
		return err
	}
	return d.mailer.Send(ctx, to, subject, body)
}
