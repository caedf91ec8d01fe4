package schedule

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

// rruleWeekdays maps our 0=Sunday weekday numbering to rrule weekdays.
var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// Materialize expands a validated request into concrete event instances over
// [ValidFrom, ValidTo], one weekly rule per template, sorted ascending by
// StartAt. IDs are left empty for the store to assign; every instance is
// stamped with the generation batch id.
//
// Materialization is additive: expanding overlapping ranges twice produces two
// independent batches, each retractable through its own generation id.
func Materialize(req GenerationRequest, generatedFrom string) []EventInstance {
	instances := make([]EventInstance, 0, EstimateCount(req))

	for _, tmpl := range req.Templates {
		// One WEEKLY rule per template, expanded between the range bounds:
		// O(occurrences), not O(days in range).
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Byweekday: []rrule.Weekday{rruleWeekdays[tmpl.Weekday]},
			Dtstart:   tmpl.StartTime.On(req.ValidFrom.Time),
			Until:     tmpl.StartTime.On(req.ValidTo.Time),
		})
		if err != nil {
			continue // unreachable for a validated request
		}

		for _, startAt := range rule.All() {
			instances = append(instances, EventInstance{
				OwnerID:            req.OwnerID,
				StartAt:            startAt,
				EndAt:              startAt.Add(tmpl.Duration()),
				IsActive:           true,
				AttendanceRequired: req.AttendanceRequired,
				Title:              req.Title,
				Location:           req.Location,
				Category:           req.Category,
				GeneratedFrom:      generatedFrom,
			})
		}
	}

	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].StartAt.Before(instances[j].StartAt)
	})
	return instances
}

// EstimateCount computes, in closed form, how many instances Materialize would
// produce; callers use it to present an estimate before committing.
func EstimateCount(req GenerationRequest) int {
	var total int
	for _, tmpl := range req.Templates {
		total += weekdayOccurrences(req.ValidFrom.Time, req.ValidTo.Time, time.Weekday(tmpl.Weekday))
	}
	return total
}

// weekdayOccurrences counts the days in [from, to] falling on `wd` by stepping
// from the first matching day in whole weeks.
func weekdayOccurrences(from, to time.Time, wd time.Weekday) int {
	offset := (int(wd) - int(from.Weekday()) + 7) % 7
	first := from.AddDate(0, 0, offset)
	if first.After(to) {
		return 0
	}
	days := int(to.Sub(first) / (24 * time.Hour))
	return days/7 + 1
}
