// Package outwriter renders report documents as tables, JSON or CSV.
package outwriter

import (
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"
)

// OutWriter provides a unified interface for all output operations.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteStackReport prints a stack report using the configured output format.
func (ow *OutWriter) WriteStackReport(doc *schema.ReportDocument, cfg *contract.Config) error {
	return WriteStackReport(doc, cfg)
}

// WriteIngestionReport prints an ingestion report using the configured output format.
func (ow *OutWriter) WriteIngestionReport(report *schema.IngestionReport, cfg *contract.Config) error {
	return WriteIngestionReport(report, cfg)
}
