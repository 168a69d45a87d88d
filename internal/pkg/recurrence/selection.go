package recurrence

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/InvoiceFox/app/repository"
)

var requestValidator = validator.New()

// selection is the resolved processing date and contract filter of a request.
type selection struct {
	Date   time.Time
	Filter repository.ContractFilter
	Mode   string
}

// Validate rejects malformed requests before any repository access.
func (r Request) Validate() error {
	if err := requestValidator.Struct(r); err != nil {
		if r.TargetDate != "" {
			if _, perr := ParseTargetDate(r.TargetDate); perr != nil {
				return perr
			}
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// resolveSelection maps a request onto a processing date and filter.
//
//	target_date + ids  -> ids only
//	target_date        -> charge_day == day(target_date)
//	ids                -> ids only
//	manual or force    -> every active contract
//	otherwise          -> charge_day == day(now)
//
// Every mode still requires status active and auto_issue.
func resolveSelection(req Request, now time.Time) (selection, error) {
	sel := selection{
		Date:   now.UTC(),
		Filter: repository.ContractFilter{RequireAutoIssue: true},
	}

	if len(req.ContractIDs) > 0 {
		sel.Filter.IDs = append([]uint(nil), req.ContractIDs...)
	}

	if req.TargetDate != "" {
		date, err := ParseTargetDate(req.TargetDate)
		if err != nil {
			return selection{}, err
		}
		sel.Date = date
		if len(sel.Filter.IDs) > 0 {
			sel.Mode = ModeSelective
			return sel, nil
		}
		day := date.Day()
		sel.Filter.ChargeDay = &day
		sel.Mode = ModeReprocess
		return sel, nil
	}

	switch {
	case len(sel.Filter.IDs) > 0:
		sel.Mode = ModeSelective
	case req.Manual || req.Force:
		sel.Mode = ModeForced
	default:
		day := sel.Date.Day()
		sel.Filter.ChargeDay = &day
		sel.Mode = ModeScheduled
	}
	return sel, nil
}
