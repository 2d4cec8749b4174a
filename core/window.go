package core

import (
	"fmt"
	"time"

	"github.com/huangsam/stackreport/schema"
)

// Window is the date range covered by one report run.
type Window struct {
	Frequency schema.Frequency
	Start     string
	End       string
	Today     time.Time
}

// Name returns the report name derived from the window end.
func (w Window) Name() string {
	name, err := schema.ReportName(w.Frequency, w.End)
	if err != nil {
		return w.End
	}
	return name
}

// Yesterday returns the day before the run date in YYYY-MM-DD form.
func (w Window) Yesterday() string {
	return w.Today.AddDate(0, 0, -1).Format(schema.DateLayout)
}

// WindowFor returns the report window of a frequency relative to today.
//
//   - daily covers [today-1, today]
//   - weekly covers [today-7, today-1], or [today-7, today] when retraining
//   - monthly covers the previous calendar month
func WindowFor(freq schema.Frequency, today time.Time, retrain bool) (Window, error) {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	w := Window{Frequency: freq, Today: today}

	switch freq {
	case schema.Daily:
		w.Start = day(today, -1)
		w.End = day(today, 0)
	case schema.Weekly:
		w.Start = day(today, -7)
		w.End = day(today, -1)
		if retrain {
			w.End = day(today, 0)
		}
	case schema.Monthly:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		last := first.AddDate(0, 0, -1)
		w.Start = last.Format("2006-01") + "-01"
		w.End = last.Format(schema.DateLayout)
	default:
		return Window{}, fmt.Errorf("unsupported frequency %q", freq)
	}
	return w, nil
}

func day(t time.Time, offset int) string {
	return t.AddDate(0, 0, offset).Format(schema.DateLayout)
}
