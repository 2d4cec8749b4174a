// Package ingestapi calls the ingestion service to fix stale latest versions and ingest missing ones.
package ingestapi

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

// Endpoint paths relative to the service URL.
const (
	rectifyPath = "/api/v1/rectify-latest-version"
	ingestPath  = "/api/v1/ingest-epv"
)

// Options configures a Client.
type Options struct {
	URL     string
	Retries int
	Backoff time.Duration
	HTTP    *http.Client
	Logger  *log.Logger
}

// Client implements contract.Rectifier and contract.IngestTrigger.
type Client struct {
	client *httputil.Client
	url    string
	logger *log.Logger
}

var (
	_ contract.Rectifier     = &Client{}
	_ contract.IngestTrigger = &Client{}
)

// New creates an ingestion service client.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logx.Discard()
	}
	return &Client{
		client: httputil.New(httputil.Options{
			HTTPClient: opts.HTTP,
			Retries:    opts.Retries,
			Backoff:    opts.Backoff,
			Logger:     logger,
		}),
		url:    strings.TrimRight(opts.URL, "/"),
		logger: logger,
	}
}

// RectifyRequest carries the corrected latest versions of one ecosystem.
type RectifyRequest struct {
	Ecosystem string                          `json:"ecosystem"`
	Packages  []schema.IncorrectLatestVersion `json:"packages"`
}

// IngestRequest lists package versions to ingest.
type IngestRequest struct {
	Ecosystem      string                  `json:"ecosystem"`
	Packages       []schema.PackageVersion `json:"packages"`
	Force          bool                    `json:"force"`
	RecursiveLimit int                     `json:"recursive_limit"`
	Source         string                  `json:"source"`
}

// RectifyLatestVersions sends the actual latest versions of packages whose known latest is stale.
func (c *Client) RectifyLatestVersions(ctx context.Context, eco schema.Ecosystem, entries []schema.IncorrectLatestVersion) error {
	if len(entries) == 0 {
		return nil
	}
	c.logger.Info("Rectifying latest versions", "ecosystem", eco, "count", len(entries))
	req := RectifyRequest{Ecosystem: string(eco), Packages: entries}
	if _, err := c.client.PostJSON(ctx, c.url+rectifyPath, nil, req, nil); err != nil {
		return fmt.Errorf("rectify latest versions for %s: %w", eco, err)
	}
	return nil
}

// IngestVersions asks for ingestion of the given package versions.
func (c *Client) IngestVersions(ctx context.Context, eco schema.Ecosystem, pkgs []schema.PackageVersion) error {
	if len(pkgs) == 0 {
		return nil
	}
	req := IngestRequest{Ecosystem: string(eco), Packages: pkgs, Source: "api"}
	if _, err := c.client.PostJSON(ctx, c.url+ingestPath, nil, req, nil); err != nil {
		return fmt.Errorf("ingest %d versions for %s: %w", len(pkgs), eco, err)
	}
	return nil
}
