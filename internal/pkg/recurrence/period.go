package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/InvoiceFox/app/models"
)

const targetDateLayout = "2006-01-02"

// Period is the UTC calendar month [Start, End) an invoice is billed for.
type Period struct {
	Start time.Time
	End   time.Time
	Label string
}

// PeriodFor returns the calendar month containing t.
func PeriodFor(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{
		Start: start,
		End:   start.AddDate(0, 1, 0),
		Label: start.Format(models.BillingPeriodLayout),
	}
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// ParseTargetDate parses a YYYY-MM-DD string to UTC midnight.
func ParseTargetDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(targetDateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTargetDate, s)
	}
	return t, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
