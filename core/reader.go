package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/objstore"
	"github.com/huangsam/stackreport/schema"
)

// ErrReportNotFound is returned when a persisted report does not exist.
var ErrReportNotFound = errors.New("report not found")

// Reader loads persisted reports back from the object store.
type Reader struct {
	Store  contract.ObjectStore
	Bucket string
	Scope  string
}

// StackReport loads the stack report of a frequency and name (YYYY-MM-DD, or YYYY-MM for monthly).
func (r *Reader) StackReport(ctx context.Context, freq schema.Frequency, name string) (*schema.ReportDocument, error) {
	if _, ok := schema.ValidFrequencies[freq]; !ok {
		return nil, fmt.Errorf("invalid frequency '%s'. must be daily, weekly, monthly", freq)
	}
	key := schema.ReportKey(r.scope(), freq, name)
	var doc schema.ReportDocument
	if err := r.load(ctx, key, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// IngestionReport loads the daily ingestion report of a name.
func (r *Reader) IngestionReport(ctx context.Context, name string) (*schema.IngestionReport, error) {
	var report schema.IngestionReport
	if err := r.load(ctx, schema.IngestionReportKey(name), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Trending returns the trending lists of one ecosystem in a stack report.
func (r *Reader) Trending(ctx context.Context, freq schema.Frequency, name string, eco schema.Ecosystem) (schema.Trending, error) {
	doc, err := r.StackReport(ctx, freq, name)
	if err != nil {
		return schema.Trending{}, err
	}
	summary, ok := doc.StacksSummary.Ecosystems[eco]
	if !ok {
		return schema.Trending{}, fmt.Errorf("ecosystem %s not in report %s", eco, name)
	}
	return summary.Trending, nil
}

// ListReports returns the names of stored stack reports of a frequency, newest first.
// Stores that cannot enumerate keys yield an error.
func (r *Reader) ListReports(ctx context.Context, freq schema.Frequency) ([]string, error) {
	lister, ok := r.Store.(objstore.Lister)
	if !ok {
		return nil, errors.New("object store cannot list reports")
	}
	prefix := fmt.Sprintf("%s/%s/", r.scope(), freq)
	keys, err := lister.Keys(ctx, r.Bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		name, ok := strings.CutSuffix(strings.TrimPrefix(k, prefix), ".json")
		if ok && name != "" && !strings.Contains(name, "/") {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	slices.Reverse(names)
	return names, nil
}

func (r *Reader) load(ctx context.Context, key string, v any) error {
	found, err := r.Store.GetJSON(ctx, r.Bucket, key, v)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrReportNotFound, key)
	}
	return nil
}

func (r *Reader) scope() string {
	if r.Scope != "" {
		return r.Scope
	}
	return schema.DefaultScope
}
