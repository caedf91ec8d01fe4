package schedule

import (
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
)

var (
	dateRequiredTag  = "daterequired"
	dateRequiredText = "this date is required"

	dateOrderTag  = "dateorder"
	dateOrderText = "valid_from must be on or before valid_to"

	dateNotPastTag  = "datenotpast"
	dateNotPastText = "valid_from cannot be in the past"

	maxRangeTag  = "maxrange"
	maxRangeText = fmt.Sprintf("the date range cannot exceed %d days", MaxRangeDays)

	templatesRequiredTag  = "templatesrequired"
	templatesRequiredText = "at least one recurrence template is required"

	timeOrderTag  = "timeorder"
	timeOrderText = "start_time must be before end_time"

	durationTag  = "durationbounds"
	durationText = fmt.Sprintf(
		"the time window must last between %d and %d minutes",
		int(MinTemplateDuration.Minutes()), int(MaxTemplateDuration.Minutes()),
	)

	uniqueWeekdayTag  = "uniqueweekday"
	uniqueWeekdayText = "each day of the week may only appear once"
)

// InitValidators registers the schedule validations & translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(generationRequestValidation, GenerationRequest{})

	core.RegisterCustomTranslation(validate, translator, dateRequiredTag, dateRequiredText)
	core.RegisterCustomTranslation(validate, translator, dateOrderTag, dateOrderText)
	core.RegisterCustomTranslation(validate, translator, dateNotPastTag, dateNotPastText)
	core.RegisterCustomTranslation(validate, translator, maxRangeTag, maxRangeText)
	core.RegisterCustomTranslation(validate, translator, templatesRequiredTag, templatesRequiredText)
	core.RegisterCustomTranslation(validate, translator, timeOrderTag, timeOrderText)
	core.RegisterCustomTranslation(validate, translator, durationTag, durationText)
	core.RegisterCustomTranslation(validate, translator, uniqueWeekdayTag, uniqueWeekdayText)
}

// generationRequestValidation checks every generation rule in one pass so the
// caller gets the complete list of violations, not just the first one.
func generationRequestValidation(sl validator.StructLevel) {
	req := sl.Current().Interface().(GenerationRequest)

	// date presence
	if req.ValidFrom.IsZero() {
		sl.ReportError(req.ValidFrom, "valid_from", "ValidFrom", dateRequiredTag, "")
	}
	if req.ValidTo.IsZero() {
		sl.ReportError(req.ValidTo, "valid_to", "ValidTo", dateRequiredTag, "")
	}

	if !req.ValidFrom.IsZero() && !req.ValidTo.IsZero() {
		if req.ValidFrom.After(req.ValidTo.Time) {
			sl.ReportError(req.ValidFrom, "valid_from", "ValidFrom", dateOrderTag, "")
		}
		if req.ValidTo.Sub(req.ValidFrom.Time) > MaxRangeDays*24*time.Hour {
			sl.ReportError(req.ValidTo, "valid_to", "ValidTo", maxRangeTag, "")
		}
	}
	if !req.ValidFrom.IsZero() {
		// no retroactive generation
		now := nowFunc().UTC()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if req.ValidFrom.Before(today) {
			sl.ReportError(req.ValidFrom, "valid_from", "ValidFrom", dateNotPastTag, "")
		}
	}

	if len(req.Templates) == 0 {
		sl.ReportError(req.Templates, "templates", "Templates", templatesRequiredTag, "")
	}

	seen := make(map[int]bool, len(req.Templates))
	var dupWeekday bool
	for i, tmpl := range req.Templates {
		field := fmt.Sprintf("templates[%d]", i)
		// time order and duration bounds are independent rules; a reversed
		// window violates both
		if tmpl.StartTime >= tmpl.EndTime {
			sl.ReportError(tmpl.StartTime, field+".start_time", "StartTime", timeOrderTag, "")
		}
		if dur := tmpl.Duration(); dur < MinTemplateDuration || dur > MaxTemplateDuration {
			sl.ReportError(tmpl.EndTime, field+".end_time", "EndTime", durationTag, "")
		}
		if seen[tmpl.Weekday] {
			dupWeekday = true
		}
		seen[tmpl.Weekday] = true
	}
	if dupWeekday {
		sl.ReportError(req.Templates, "templates", "Templates", uniqueWeekdayTag, "")
	}
}

// Validate is pure: it never touches the store and validating the same request
// twice yields identical results.
func (r GenerationRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func (a BulkAction) Validate(validate *validator.Validate) error {
	return validate.Struct(a)
}
