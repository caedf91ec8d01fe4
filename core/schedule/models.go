package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/trezcool/ratiba/core"
)

var (
	// errors
	ErrNotFound   = errors.New("event instance not found")
	ErrOutOfScope = errors.New("one or more instances do not belong to the caller")

	errBadTimeOfDay = errors.New("time of day must be of form HH:MM")
	errBadDate      = errors.New("date must be of form YYYY-MM-DD")
)

const (
	// template duration bounds
	MinTemplateDuration = 30 * time.Minute
	MaxTemplateDuration = 4 * time.Hour

	// maximum generation range
	MaxRangeDays = 365
)

// TimeOfDay is a naive wall-clock time with minute precision,
// stored as minutes since midnight. JSON form is "HH:MM".
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On anchors the wall-clock time to the calendar day of `day`.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, errBadTimeOfDay
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, errBadTimeOfDay
	}
	return NewTimeOfDay(hour, minute), nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errBadTimeOfDay
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

const dateLayout = "2006-01-02"

// Date is a naive calendar day (normalized to midnight UTC). JSON form is "YYYY-MM-DD".
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return Date{}, errBadDate
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errBadDate
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// RecurrenceTemplate is a single weekly day-of-week + time-window rule.
type RecurrenceTemplate struct {
	Weekday   int       `json:"day_of_week" validate:"gte=0,lte=6"` // 0 = Sunday
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

func (t RecurrenceTemplate) Duration() time.Duration {
	return time.Duration(t.EndTime-t.StartTime) * time.Minute
}

// GenerationRequest describes a weekly recurrence to be materialized
// over a date range for a given owner.
type GenerationRequest struct {
	OwnerID            string               `json:"-"`
	ValidFrom          Date                 `json:"valid_from"`
	ValidTo            Date                 `json:"valid_to"`
	Templates          []RecurrenceTemplate `json:"templates" validate:"dive"`
	Title              string               `json:"title"`
	Location           string               `json:"location"`
	Category           string               `json:"category" validate:"required"`
	AttendanceRequired bool                 `json:"attendance_required"`
	NotifyEmail        string               `json:"notify_email" validate:"omitempty,email"`
}

func (r *GenerationRequest) Clean() {
	r.Title = core.CleanString(r.Title)
	r.Location = core.CleanString(r.Location)
	r.Category = core.CleanString(r.Category, true /* lower */)
	r.NotifyEmail = core.CleanString(r.NotifyEmail, true /* lower */)
}

// EventInstance is one concrete calendar event materialized from a recurrence
// template. Instances are only ever created in generation batches; IsActive and
// deletion are driven by the bulk lifecycle operations. Whether an instance is
// "past" is derived from StartAt at query time, never stored.
type EventInstance struct {
	ID                 string    `json:"id"`
	OwnerID            string    `json:"owner_id"`
	StartAt            time.Time `json:"start_at"` // UTC
	EndAt              time.Time `json:"end_at"`   // UTC
	IsActive           bool      `json:"is_active"`
	AttendanceRequired bool      `json:"attendance_required"`
	Title              string    `json:"title"`
	Location           string    `json:"location"`
	Category           string    `json:"category"`
	GeneratedFrom      string    `json:"generated_from"`
}

// GenerationResult reports a committed generation batch.
type GenerationResult struct {
	CreatedCount  int             `json:"created_count"`
	GeneratedFrom string          `json:"generated_from"`
	Instances     []EventInstance `json:"instances"`
}

type TimeFilter string

const (
	TimeFilterCurrent TimeFilter = "current"
	TimeFilterPast    TimeFilter = "past"
)

func (f TimeFilter) Valid() bool {
	return f == TimeFilterCurrent || f == TimeFilterPast
}

// QueryFilter selects a time partition and a page window over an owner's instances.
type QueryFilter struct {
	Time TimeFilter
	core.Paging
}

func (f *QueryFilter) Clean() {
	if !f.Time.Valid() {
		f.Time = TimeFilterCurrent
	}
	f.Paging.Clean()
}

// PagedInstances is one page of a time-partitioned listing.
type PagedInstances struct {
	Items      []EventInstance `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
	HasMore    bool            `json:"has_more"`
}

// Bulk lifecycle actions
const (
	ActionActivate     = "activate"
	ActionDeactivate   = "deactivate"
	ActionDeleteFuture = "delete_future"
)

// BulkAction is a bulk lifecycle request over a set of instance ids.
type BulkAction struct {
	Action string   `json:"action" validate:"required,oneof=activate deactivate delete_future"`
	IDs    []string `json:"ids" validate:"required,min=1,dive,required"`
}

// BulkResult reports how a bulk lifecycle call went: Skipped counts the past
// instances deliberately excluded from a delete_future; Requested is always
// Affected + Skipped.
type BulkResult struct {
	Requested int `json:"requested"`
	Affected  int `json:"affected"`
	Skipped   int `json:"skipped"`
}
