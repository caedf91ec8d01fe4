package schedule

import (
	"testing"
	"time"
)

func TestMaterialize(t *testing.T) {
	tests := []struct {
		name       string
		req        GenerationRequest
		wantStarts []time.Time
	}{
		{
			name: "two mondays",
			req: GenerationRequest{
				OwnerID:   "owner1",
				ValidFrom: NewDate(2024, time.June, 3),
				ValidTo:   NewDate(2024, time.June, 16),
				Templates: []RecurrenceTemplate{
					{Weekday: 1, StartTime: NewTimeOfDay(9, 0), EndTime: NewTimeOfDay(10, 30)},
				},
				Category: "lecture",
			},
			wantStarts: []time.Time{
				time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC),
				time.Date(2024, time.June, 10, 9, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "two templates interleaved ascending",
			req: GenerationRequest{
				OwnerID:   "owner1",
				ValidFrom: NewDate(2024, time.June, 3),
				ValidTo:   NewDate(2024, time.June, 9),
				Templates: []RecurrenceTemplate{
					{Weekday: 5, StartTime: NewTimeOfDay(14, 0), EndTime: NewTimeOfDay(15, 0)},
					{Weekday: 1, StartTime: NewTimeOfDay(9, 0), EndTime: NewTimeOfDay(10, 0)},
				},
				Category: "lab",
			},
			wantStarts: []time.Time{
				time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC),
				time.Date(2024, time.June, 7, 14, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "weekday outside range",
			req: GenerationRequest{
				ValidFrom: NewDate(2024, time.June, 3), // Monday
				ValidTo:   NewDate(2024, time.June, 4), // Tuesday
				Templates: []RecurrenceTemplate{
					{Weekday: 0, StartTime: NewTimeOfDay(9, 0), EndTime: NewTimeOfDay(10, 0)},
				},
				Category: "lecture",
			},
			wantStarts: nil,
		},
		{
			name: "single day range matching weekday",
			req: GenerationRequest{
				ValidFrom: NewDate(2024, time.June, 3),
				ValidTo:   NewDate(2024, time.June, 3),
				Templates: []RecurrenceTemplate{
					{Weekday: 1, StartTime: NewTimeOfDay(9, 0), EndTime: NewTimeOfDay(10, 0)},
				},
				Category: "lecture",
			},
			wantStarts: []time.Time{
				time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instances := Materialize(tt.req, "gen1")

			if len(instances) != len(tt.wantStarts) {
				t.Fatalf("Materialize() len = %d, want %d", len(instances), len(tt.wantStarts))
			}
			if got, want := len(instances), EstimateCount(tt.req); got != want {
				t.Errorf("EstimateCount() = %d, want %d (actual expansion)", want, got)
			}
			for i, inst := range instances {
				if !inst.StartAt.Equal(tt.wantStarts[i]) {
					t.Errorf("instances[%d].StartAt = %v, want %v", i, inst.StartAt, tt.wantStarts[i])
				}
				if inst.OwnerID != tt.req.OwnerID {
					t.Errorf("instances[%d].OwnerID = %q, want %q", i, inst.OwnerID, tt.req.OwnerID)
				}
				if !inst.IsActive {
					t.Errorf("instances[%d] must start out active", i)
				}
				if inst.GeneratedFrom != "gen1" {
					t.Errorf("instances[%d].GeneratedFrom = %q, want %q", i, inst.GeneratedFrom, "gen1")
				}
			}
		})
	}
}

func TestMaterialize_endTimes(t *testing.T) {
	req := GenerationRequest{
		ValidFrom: NewDate(2024, time.June, 3),
		ValidTo:   NewDate(2024, time.June, 16),
		Templates: []RecurrenceTemplate{
			{Weekday: 1, StartTime: NewTimeOfDay(9, 0), EndTime: NewTimeOfDay(10, 30)},
		},
		Category: "lecture",
	}

	for i, inst := range Materialize(req, "gen1") {
		if got, want := inst.EndAt.Sub(inst.StartAt), 90*time.Minute; got != want {
			t.Errorf("instances[%d] duration = %v, want %v", i, got, want)
		}
	}
}

func Test_weekdayOccurrences(t *testing.T) {
	monday := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		wd   time.Weekday
		want int
	}{
		{name: "same day match", from: monday, to: monday, wd: time.Monday, want: 1},
		{name: "same day no match", from: monday, to: monday, wd: time.Tuesday, want: 0},
		{name: "two weeks", from: monday, to: monday.AddDate(0, 0, 13), wd: time.Monday, want: 2},
		{name: "partial second week", from: monday, to: monday.AddDate(0, 0, 8), wd: time.Monday, want: 2},
		{name: "weekday before range start", from: monday, to: monday.AddDate(0, 0, 5), wd: time.Sunday, want: 0},
		{name: "full year of wednesdays", from: monday, to: monday.AddDate(1, 0, 0), wd: time.Wednesday, want: 52},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := weekdayOccurrences(tt.from, tt.to, tt.wd); got != tt.want {
				t.Errorf("weekdayOccurrences() = %d, want %d", got, tt.want)
			}
		})
	}
}
