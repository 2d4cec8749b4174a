// Package graph runs batched Gremlin scripts against the graph database REST endpoint.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/httputil"
	"github.com/huangsam/stackreport/internal/logx"
	"github.com/huangsam/stackreport/internal/metrics"
	"github.com/huangsam/stackreport/schema"
)

// Script templates. Every statement appends its rows to the shared epv list.
const (
	batchPrelude     = "epv=[];"
	packageTemplate  = "g.V().has('ecosystem', '%s').has('name', '%s').valueMap().dedup().fill(epv);"
	versionTemplate  = "g.V().has('pecosystem', '%s').has('pname', '%s').has('version', '%s').valueMap().dedup().fill(epv);"
	cveNodeTemplate  = "g.V().has('cve_id', '%s').valueMap('cve_id').dedup().fill(epv);"
	defaultBatchSize = 50
)

// Options configures a Client.
type Options struct {
	URL       string
	HTTP      *httputil.Client
	BatchSize int
	Logger    *log.Logger
	Metrics   *metrics.Metrics
}

// Client implements contract.GraphLookup over the Gremlin REST API.
type Client struct {
	url       string
	http      *httputil.Client
	batchSize int
	logger    *log.Logger
	metrics   *metrics.Metrics
}

var _ contract.GraphLookup = &Client{}

// New creates a graph client.
func New(opts Options) *Client {
	c := &Client{
		url:       opts.URL,
		http:      opts.HTTP,
		batchSize: opts.BatchSize,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if c.http == nil {
		c.http = httputil.New(httputil.Options{})
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultBatchSize
	}
	if c.logger == nil {
		c.logger = logx.Discard()
	}
	return c
}

type gremlinRequest struct {
	Gremlin string `json:"gremlin"`
}

type gremlinResponse struct {
	Result struct {
		Data []json.RawMessage `json:"data"`
	} `json:"result"`
}

// Execute runs one script and returns the rows of its result.
func (c *Client) Execute(ctx context.Context, script string) ([]json.RawMessage, error) {
	var resp gremlinResponse
	if _, err := c.http.PostJSON(ctx, c.url, nil, gremlinRequest{Gremlin: script}, &resp); err != nil {
		return nil, fmt.Errorf("gremlin request: %w", err)
	}
	return resp.Result.Data, nil
}

// batchResult holds the rows of one round trip. ok is false when the batch failed.
type batchResult struct {
	rows []json.RawMessage
	ok   bool
}

// executeBatches sends statements in sequential batches of batchSize.
// A failed batch is logged and reported with ok=false; the remaining batches still run.
func (c *Client) executeBatches(ctx context.Context, statements []string) []batchResult {
	var results []batchResult
	for start := 0; start < len(statements); start += c.batchSize {
		end := min(start+c.batchSize, len(statements))
		script := batchPrelude + strings.Join(statements[start:end], "")

		rows, err := c.Execute(ctx, script)
		if err != nil {
			c.logger.Error("Error while trying to fetch data from graph", "batch_start", start, "batch_size", end-start, "err", err)
			c.metrics.GraphBatchFailed()
			results = append(results, batchResult{})
			continue
		}
		results = append(results, batchResult{rows: rows, ok: true})
	}
	return results
}

// valueMap is a vertex property map as returned by valueMap(). Every property is a list.
type valueMap map[string][]any

// first returns the first value of a property as a string.
func (v valueMap) first(key string) string {
	values := v[key]
	if len(values) == 0 || values[0] == nil {
		return ""
	}
	if s, ok := values[0].(string); ok {
		return s
	}
	return fmt.Sprint(values[0])
}

// decodeRows decodes result rows into value maps, dropping rows of any other shape.
func (c *Client) decodeRows(rows []json.RawMessage) []valueMap {
	out := make([]valueMap, 0, len(rows))
	for _, row := range rows {
		var vm valueMap
		if err := json.Unmarshal(row, &vm); err != nil {
			c.logger.Debug("Skipping graph row", "row", string(row), "err", err)
			continue
		}
		out = append(out, vm)
	}
	return out
}

// quote escapes a value for a single-quoted Gremlin string literal.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// KnownLatestVersions returns the latest_version recorded on package vertices.
// Only Known and NonCVEVersion are filled; Actual comes from the registries.
func (c *Client) KnownLatestVersions(ctx context.Context, pkgs []schema.PackageKey) map[schema.PackageKey]schema.LatestVersionInfo {
	out := make(map[schema.PackageKey]schema.LatestVersionInfo, len(pkgs))
	if len(pkgs) == 0 {
		return out
	}
	statements := make([]string, len(pkgs))
	for i, p := range pkgs {
		statements[i] = fmt.Sprintf(packageTemplate, quote(string(p.Ecosystem)), quote(p.Name))
	}
	for _, batch := range c.executeBatches(ctx, statements) {
		for _, vm := range c.decodeRows(batch.rows) {
			key := schema.PackageKey{Ecosystem: schema.Ecosystem(vm.first("ecosystem")), Name: vm.first("name")}
			if key.Name == "" {
				continue
			}
			out[key] = schema.LatestVersionInfo{
				Known:         vm.first("latest_version"),
				NonCVEVersion: vm.first("latest_non_cve_version"),
			}
		}
	}
	return out
}

// PresentVersions reports which package versions exist as version vertices.
// Keys of a failed batch are left out of the result.
func (c *Client) PresentVersions(ctx context.Context, epvs []schema.EPV) map[schema.EPV]bool {
	out := make(map[schema.EPV]bool, len(epvs))
	if len(epvs) == 0 {
		return out
	}
	statements := make([]string, len(epvs))
	for i, e := range epvs {
		statements[i] = fmt.Sprintf(versionTemplate, quote(string(e.Ecosystem)), quote(e.Name), quote(e.Version))
	}
	for i, batch := range c.executeBatches(ctx, statements) {
		if !batch.ok {
			continue
		}
		start := i * c.batchSize
		for _, e := range epvs[start:min(start+c.batchSize, len(epvs))] {
			out[e] = false
		}
		for _, vm := range c.decodeRows(batch.rows) {
			e := schema.EPV{
				Ecosystem: schema.Ecosystem(vm.first("pecosystem")),
				Name:      vm.first("pname"),
				Version:   vm.first("version"),
			}
			if _, asked := out[e]; asked {
				out[e] = true
			}
		}
	}
	return out
}

// PresentCVEs reports which CVE ids exist as vertices.
// Ids of a failed batch are left out of the result.
func (c *Client) PresentCVEs(ctx context.Context, ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out
	}
	statements := make([]string, len(ids))
	for i, id := range ids {
		statements[i] = fmt.Sprintf(cveNodeTemplate, quote(id))
	}
	for i, batch := range c.executeBatches(ctx, statements) {
		if !batch.ok {
			continue
		}
		start := i * c.batchSize
		for _, id := range ids[start:min(start+c.batchSize, len(ids))] {
			out[id] = false
		}
		for _, vm := range c.decodeRows(batch.rows) {
			if id := vm.first("cve_id"); id != "" {
				if _, asked := out[id]; asked {
					out[id] = true
				}
			}
		}
	}
	return out
}

// NoneLookup answers every lookup with no data. It is used when no graph URL is configured.
type NoneLookup struct{}

var _ contract.GraphLookup = NoneLookup{}

// KnownLatestVersions implements contract.GraphLookup.
func (NoneLookup) KnownLatestVersions(context.Context, []schema.PackageKey) map[schema.PackageKey]schema.LatestVersionInfo {
	return map[schema.PackageKey]schema.LatestVersionInfo{}
}

// PresentVersions implements contract.GraphLookup.
func (NoneLookup) PresentVersions(context.Context, []schema.EPV) map[schema.EPV]bool {
	return map[schema.EPV]bool{}
}

// PresentCVEs implements contract.GraphLookup.
func (NoneLookup) PresentCVEs(context.Context, []string) map[string]bool {
	return map[string]bool{}
}
