// Package retrain starts model retraining jobs on the EMR service.
package retrain

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/httputil"
	"github.com/huangsam/stackreport/internal/logx"
	"github.com/huangsam/stackreport/schema"
)

// Options configures a Client.
type Options struct {
	URL     string
	Retries int
	Backoff time.Duration
	HTTP    *http.Client
	Logger  *log.Logger
}

// Client implements contract.RetrainTrigger.
type Client struct {
	client *httputil.Client
	url    string
	logger *log.Logger
}

var _ contract.RetrainTrigger = &Client{}

// New creates a retraining client.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logx.Discard()
	}
	return &Client{
		client: httputil.New(httputil.Options{
			HTTPClient:    opts.HTTP,
			Retries:       opts.Retries,
			Backoff:       opts.Backoff,
			RetryStatuses: []int{http.StatusBadGateway, http.StatusGatewayTimeout},
			Logger:        logger,
		}),
		url:    strings.TrimRight(opts.URL, "/"),
		logger: logger,
	}
}

// RunJobRequest is the body of a runjob call.
type RunJobRequest struct {
	BucketName  string `json:"bucket_name"`
	GitHubRepo  string `json:"github_repo"`
	Ecosystem   string `json:"ecosystem"`
	DataVersion string `json:"data_version"`
}

// Invoke asks the EMR service to retrain the model of eco on the data stored under dataVersion in bucket.
func (c *Client) Invoke(ctx context.Context, bucket string, eco schema.Ecosystem, dataVersion, repoURL string) error {
	req := RunJobRequest{BucketName: bucket, GitHubRepo: repoURL, Ecosystem: string(eco), DataVersion: dataVersion}
	c.logger.Info("Invoking EMR retraining", "ecosystem", eco, "bucket", bucket, "data_version", dataVersion, "github_repo", repoURL)

	var resp map[string]any
	if _, err := c.client.PostJSON(ctx, c.url+"/api/v1/runjob", nil, req, &resp); err != nil {
		return fmt.Errorf("invoke EMR API for %s: %w", eco, err)
	}
	c.logger.Debug("EMR API response", "ecosystem", eco, "response", resp)
	return nil
}
