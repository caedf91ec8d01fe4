package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/trezcool/ratiba/core/schedule"
)

// preview expands a recurrence on the command line without touching the DB;
// handy for sanity-checking a term plan before submitting it.
func (cli *commandLine) preview(args []string) error {
	previewCmd := flag.NewFlagSet("preview", flag.ExitOnError)
	from := previewCmd.String("from", "", "First valid date (YYYY-MM-DD).")
	to := previewCmd.String("to", "", "Last valid date (YYYY-MM-DD), inclusive.")
	weekdays := previewCmd.String("weekdays", "", "Comma-separated weekday numbers, 0 = Sunday.")
	start := previewCmd.String("start", "", "Start time (HH:MM).")
	end := previewCmd.String("end", "", "End time (HH:MM).")
	max := previewCmd.Int("max", 10, "Max occurrences to print.")

	if err := previewCmd.Parse(args); err != nil {
		return err
	}
	if *from == "" || *to == "" || *weekdays == "" || *start == "" || *end == "" {
		previewCmd.Usage()
		return errHelp
	}

	validFrom, err := schedule.ParseDate(*from)
	if err != nil {
		return fmt.Errorf("-from: %s", err)
	}
	validTo, err := schedule.ParseDate(*to)
	if err != nil {
		return fmt.Errorf("-to: %s", err)
	}
	startTime, err := schedule.ParseTimeOfDay(*start)
	if err != nil {
		return fmt.Errorf("-start: %s", err)
	}
	endTime, err := schedule.ParseTimeOfDay(*end)
	if err != nil {
		return fmt.Errorf("-end: %s", err)
	}

	var templates []schedule.RecurrenceTemplate
	for _, s := range strings.Split(*weekdays, ",") {
		wd, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || wd < 0 || wd > 6 {
			return fmt.Errorf("-weekdays: %q is not a weekday number (0-6)", s)
		}
		templates = append(templates, schedule.RecurrenceTemplate{
			Weekday:   wd,
			StartTime: startTime,
			EndTime:   endTime,
		})
	}

	req := schedule.GenerationRequest{
		ValidFrom: validFrom,
		ValidTo:   validTo,
		Templates: templates,
	}

	fmt.Printf("Estimated occurrences: %d\n", schedule.EstimateCount(req))

	instances := schedule.Materialize(req, "preview")
	for i, inst := range instances {
		if i >= *max {
			fmt.Printf("... and %d more\n", len(instances)-*max)
			break
		}
		fmt.Printf("  %s to %s\n", inst.StartAt.Format("Mon 2006-01-02 15:04"), inst.EndAt.Format("15:04"))
	}
	return nil
}
