package schema

import (
	"fmt"
	"regexp"
	"time"
)

// DateLayout is the only accepted date format for report windows.
const DateLayout = "2006-01-02"

// TimestampLayout parses audit timestamps; fractional seconds are accepted by time.Parse.
const TimestampLayout = "2006-01-02T15:04:05"

// GeneratedOnLayout stamps generated_on with microseconds.
const GeneratedOnLayout = "2006-01-02T15:04:05.000000"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDate reports whether s is a calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	if !dateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ReportName derives the report name from the window end date.
// Monthly reports use YYYY-MM; all others use YYYY-MM-DD.
func ReportName(freq Frequency, endDate string) (string, error) {
	t, err := time.Parse(DateLayout, endDate)
	if err != nil {
		return "", fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	if freq == Monthly {
		return t.Format("2006-01"), nil
	}
	return t.Format(DateLayout), nil
}

// ReportKey returns the object key of a stack report.
func ReportKey(scope string, freq Frequency, name string) string {
	return fmt.Sprintf("%s/%s/%s.json", scope, freq, name)
}

// IngestionReportKey returns the object key of an ingestion report.
func IngestionReportKey(name string) string {
	return fmt.Sprintf("ingestion-data/epv/%s.json", name)
}

// SentryReportKey returns the object key of a sentry error report.
func SentryReportKey(prefix, name string) string {
	if prefix == "" {
		return fmt.Sprintf("sentry-error-data/%s.json", name)
	}
	return fmt.Sprintf("%s/sentry-error-data/%s.json", prefix, name)
}

// CollatedUserInputKey returns the object key of the collated user input state.
func CollatedUserInputKey(freq Frequency) string {
	return fmt.Sprintf("user-input-data/collated-%s.json", freq)
}

// CollatedBigQueryKey is the object key of the bulk historical dataset.
const CollatedBigQueryKey = "big-query-data/collated.json"

// TrainingManifestKey returns the object key of a training manifest for a data version.
func TrainingManifestKey(dataVersion string) string {
	return fmt.Sprintf("%s/data/manifest.json", dataVersion)
}
