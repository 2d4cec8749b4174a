// Package objstore stores report documents as JSON objects addressed by bucket and key.
package objstore

import (
	"context"
	"fmt"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"
)

// Options selects and configures an object store backend.
type Options struct {
	Backend schema.ObjectBackend

	// SQL backend
	DBBackend schema.DatabaseBackend
	DBConnStr string

	// GCS backend
	CredentialsFile string
}

// New returns the object store for the configured backend.
func New(ctx context.Context, opts Options) (contract.ObjectStore, error) {
	switch opts.Backend {
	case schema.SQLObjects, "":
		return NewSQLStore(opts.DBBackend, opts.DBConnStr)
	case schema.GCSObjects:
		return NewGCSStore(ctx, opts.CredentialsFile)
	case schema.NoneObjects:
		return NoneStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported object backend: %s. Must be sql, gcs, or none", opts.Backend)
	}
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context, bucket, prefix string) ([]string, error)
}

// NoneStore discards writes and finds nothing.
type NoneStore struct{}

var _ contract.ObjectStore = NoneStore{} // Compile-time check

// GetJSON always reports the object as missing.
func (NoneStore) GetJSON(context.Context, string, string, any) (bool, error) { return false, nil }

// PutJSON discards the document.
func (NoneStore) PutJSON(context.Context, string, string, any) error { return nil }

// Keys lists nothing.
func (NoneStore) Keys(context.Context, string, string) ([]string, error) { return nil, nil }

// Close is a no-op.
func (NoneStore) Close() error { return nil }
