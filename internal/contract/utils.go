package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

// Accuracy label constants.
const (
	HealthyValue  = "Healthy"  // Healthy value
	DegradedValue = "Degraded" // Degraded value
	FailingValue  = "Failing"  // Failing value
	UnknownValue  = "Unknown"  // No denominator
)

// Color variables for console output.
var (
	HealthyColor  = color.New(color.FgGreen)              // healthyColor represents a passing accuracy.
	DegradedColor = color.New(color.FgYellow)             // degradedColor represents standard caution, not bold.
	FailingColor  = color.New(color.FgRed, color.Bold)    // failingColor represents standard danger.
	UnknownColor  = color.New(color.FgCyan)               // unknownColor represents informational / no data.
	HeaderColor   = color.New(color.FgMagenta, color.Bold) // headerColor marks section titles.
)

// GetPlainLabel returns a plain text label for an accuracy percentage.
// A nil accuracy means it could not be computed.
func GetPlainLabel(accuracy *float64) string {
	switch {
	case accuracy == nil:
		return UnknownValue
	case *accuracy >= 95:
		return HealthyValue
	case *accuracy >= 80:
		return DegradedValue
	default:
		return FailingValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
func GetColorLabel(accuracy *float64) string {
	text := GetPlainLabel(accuracy)

	switch text {
	case HealthyValue:
		return HealthyColor.Sprint(text)
	case DegradedValue:
		return DegradedColor.Sprint(text)
	case FailingValue:
		return FailingColor.Sprint(text)
	default:
		return UnknownColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It returns os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// GetSourceDBFilePath returns the path to the SQLite DB file used as the analytics source.
func GetSourceDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".stackreport_source.db"
	}
	return filepath.Join(homeDir, ".stackreport_source.db")
}

// GetRunDBFilePath returns the path to the SQLite DB file for run tracking and documents.
func GetRunDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".stackreport_runs.db"
	}
	return filepath.Join(homeDir, ".stackreport_runs.db")
}

// TruncatePath truncates a long key to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 to ensure there's space for both the "..." prefix and at least one character of content.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return path
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
