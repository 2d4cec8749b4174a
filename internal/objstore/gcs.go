package objstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/huangsam/stackreport/internal/contract"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore keeps documents in Google Cloud Storage buckets.
type GCSStore struct {
	client *storage.Client
}

var _ contract.ObjectStore = &GCSStore{} // Compile-time check

// NewGCSStore creates a storage client. An empty credentialsFile uses application default credentials.
func NewGCSStore(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*GCSStore, error) {
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s. Please ensure you have the correct key and it is accessible", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// GetJSON decodes the object into v. A missing object or bucket is reported as not found.
func (g *GCSStore) GetJSON(ctx context.Context, bucket, key string, v any) (bool, error) {
	reader, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open gs://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = reader.Close() }()

	body, err := io.ReadAll(reader)
	if err != nil {
		return false, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, key, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return true, fmt.Errorf("failed to decode gs://%s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// PutJSON encodes v and uploads it, replacing any previous object.
func (g *GCSStore) PutJSON(ctx context.Context, bucket, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode gs://%s/%s: %w", bucket, key, err)
	}

	writer := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"
	if _, err := writer.Write(body); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to upload gs://%s/%s: %w", bucket, key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// Keys lists object names of a bucket under prefix.
func (g *GCSStore) Keys(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Close releases the storage client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}
