package alerting

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	templateFailure = "recurring_failure"
	templateTest    = "recurring_test"
)

// EmailRenderer renders alert emails from the embedded templates.
type EmailRenderer struct {
	engine *html.Engine
}

func NewEmailRenderer() (*EmailRenderer, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load alert templates: %w", err)
	}
	return &EmailRenderer{engine: engine}, nil
}

// RenderFailure returns subject and HTML body for a failure alert.
func (r *EmailRenderer) RenderFailure(alert FailureAlert) (string, string, error) {
	firstError := ""
	if len(alert.Failed) > 0 {
		firstError = alert.Failed[0].Error
	}
	names := make([]string, 0, len(alert.Failed))
	for _, f := range alert.Failed {
		names = append(names, f.DisplayName())
	}

	subject := fmt.Sprintf("[InvoiceFox] %d recurring invoice(s) failed on %s",
		len(alert.Failed), alert.ExecutionDate.Format("2006-01-02"))

	var buf bytes.Buffer
	err := r.engine.Render(&buf, templateFailure, fiber.Map{
		"ExecutionDate": alert.ExecutionDate.Format("2006-01-02"),
		"RunID":         alert.RunID,
		"Failed":        alert.Failed,
		"Names":         names,
		"FirstError":    firstError,
		"Summary":       alert.Summary,
	})
	if err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}

// RenderTest returns subject and HTML body for a test alert.
func (r *EmailRenderer) RenderTest(sentAt time.Time) (string, string, error) {
	var buf bytes.Buffer
	err := r.engine.Render(&buf, templateTest, fiber.Map{
		"SentAt": sentAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return "", "", err
	}
	return "[InvoiceFox] Test alert", buf.String(), nil
}
