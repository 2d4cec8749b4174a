package contract

import (
	"context"
	"encoding/json"
	"time"

	"github.com/huangsam/stackreport/schema"
	"github.com/stretchr/testify/mock"
)

// MockReportQueries is a mock implementation of ReportQueries for testing.
type MockReportQueries struct {
	mock.Mock
}

var _ ReportQueries = &MockReportQueries{} // Compile-time check

// StackAnalysisIDs implements the ReportQueries interface.
func (m *MockReportQueries) StackAnalysisIDs(ctx context.Context, start, end string) ([]string, error) {
	args := m.Called(ctx, start, end)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

// WorkerResults implements the ReportQueries interface.
func (m *MockReportQueries) WorkerResults(ctx context.Context, kind schema.WorkerKind, ids []string) ([]json.RawMessage, error) {
	args := m.Called(ctx, kind, ids)
	rows, _ := args.Get(0).([]json.RawMessage)
	return rows, args.Error(1)
}

// IngestionEPVs implements the ReportQueries interface.
func (m *MockReportQueries) IngestionEPVs(ctx context.Context, start, end string) ([]schema.EPV, error) {
	args := m.Called(ctx, start, end)
	epvs, _ := args.Get(0).([]schema.EPV)
	return epvs, args.Error(1)
}

// CleanupTaskMeta implements the ReportQueries interface.
func (m *MockReportQueries) CleanupTaskMeta(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// CleanupWorkerResults implements the ReportQueries interface.
func (m *MockReportQueries) CleanupWorkerResults(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// Close implements the ReportQueries interface.
func (m *MockReportQueries) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockGraphLookup is a mock implementation of GraphLookup for testing.
type MockGraphLookup struct {
	mock.Mock
}

var _ GraphLookup = &MockGraphLookup{} // Compile-time check

// KnownLatestVersions implements the GraphLookup interface.
func (m *MockGraphLookup) KnownLatestVersions(ctx context.Context, pkgs []schema.PackageKey) map[schema.PackageKey]schema.LatestVersionInfo {
	args := m.Called(ctx, pkgs)
	out, _ := args.Get(0).(map[schema.PackageKey]schema.LatestVersionInfo)
	return out
}

// PresentVersions implements the GraphLookup interface.
func (m *MockGraphLookup) PresentVersions(ctx context.Context, epvs []schema.EPV) map[schema.EPV]bool {
	args := m.Called(ctx, epvs)
	out, _ := args.Get(0).(map[schema.EPV]bool)
	return out
}

// PresentCVEs implements the GraphLookup interface.
func (m *MockGraphLookup) PresentCVEs(ctx context.Context, ids []string) map[string]bool {
	args := m.Called(ctx, ids)
	out, _ := args.Get(0).(map[string]bool)
	return out
}

// MockVersionResolver is a mock implementation of VersionResolver for testing.
type MockVersionResolver struct {
	mock.Mock
}

var _ VersionResolver = &MockVersionResolver{} // Compile-time check

// LatestVersion implements the VersionResolver interface.
func (m *MockVersionResolver) LatestVersion(ctx context.Context, eco schema.Ecosystem, pkg string) (string, error) {
	args := m.Called(ctx, eco, pkg)
	return args.String(0), args.Error(1)
}

// MockRectifier is a mock implementation of Rectifier for testing.
type MockRectifier struct {
	mock.Mock
}

var _ Rectifier = &MockRectifier{} // Compile-time check

// RectifyLatestVersions implements the Rectifier interface.
func (m *MockRectifier) RectifyLatestVersions(ctx context.Context, eco schema.Ecosystem, entries []schema.IncorrectLatestVersion) error {
	args := m.Called(ctx, eco, entries)
	return args.Error(0)
}

// MockIngestTrigger is a mock implementation of IngestTrigger for testing.
type MockIngestTrigger struct {
	mock.Mock
}

var _ IngestTrigger = &MockIngestTrigger{} // Compile-time check

// IngestVersions implements the IngestTrigger interface.
func (m *MockIngestTrigger) IngestVersions(ctx context.Context, eco schema.Ecosystem, pkgs []schema.PackageVersion) error {
	args := m.Called(ctx, eco, pkgs)
	return args.Error(0)
}

// MockRetrainTrigger is a mock implementation of RetrainTrigger for testing.
type MockRetrainTrigger struct {
	mock.Mock
}

var _ RetrainTrigger = &MockRetrainTrigger{} // Compile-time check

// Invoke implements the RetrainTrigger interface.
func (m *MockRetrainTrigger) Invoke(ctx context.Context, bucket string, eco schema.Ecosystem, dataVersion, repoURL string) error {
	args := m.Called(ctx, bucket, eco, dataVersion, repoURL)
	return args.Error(0)
}

// MockCVEReporter is a mock implementation of CVEReporter for testing.
type MockCVEReporter struct {
	mock.Mock
}

var _ CVEReporter = &MockCVEReporter{} // Compile-time check

// Report implements the CVEReporter interface.
func (m *MockCVEReporter) Report(ctx context.Context, updatedOn string) (*schema.CVEReport, error) {
	args := m.Called(ctx, updatedOn)
	r, _ := args.Get(0).(*schema.CVEReport)
	return r, args.Error(1)
}

// MockSentryReporter is a mock implementation of SentryReporter for testing.
type MockSentryReporter struct {
	mock.Mock
}

var _ SentryReporter = &MockSentryReporter{} // Compile-time check

// Report implements the SentryReporter interface.
func (m *MockSentryReporter) Report(ctx context.Context) (*schema.SentryReport, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*schema.SentryReport)
	return r, args.Error(1)
}
