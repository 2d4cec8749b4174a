package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/huangsam/stackreport/internal/contract"
)

// writeWithFile opens the output (stdout when outputFile is empty), runs writer on it
// and reports where a file was written.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		_, _ = fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON encodes data with two-space indentation.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSVWithHeader writes header and then lets writeRows emit the records.
func writeCSVWithHeader(w io.Writer, header []string, writeRows func(*csv.Writer) error) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	return writeRows(csvWriter)
}

// formatAccuracy renders an accuracy percentage, or "n/a" when it has no denominator.
func formatAccuracy(accuracy *float64) string {
	if accuracy == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*accuracy, 'f', 2, 64) + "%"
}

// colorizers returns the header and accent painters, or plain printers when colors are off.
func colorizers(useColors bool) (header, accent func(...any) string) {
	if !useColors {
		return fmt.Sprint, fmt.Sprint
	}
	return contract.HeaderColor.SprintFunc(), contract.UnknownColor.SprintFunc()
}
