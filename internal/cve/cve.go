// Package cve builds the CVE database activity report from GitHub pull request searches.
package cve

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/httputil"
	"github.com/huangsam/stackreport/internal/logx"
	"github.com/huangsam/stackreport/schema"
	"golang.org/x/time/rate"
)

// DefaultSearchRPS keeps under the GitHub search quota of 30 requests per minute.
const DefaultSearchRPS = 0.5

// openWindows are the day spans reported in github_stats.open_count.
var openWindows = []int{2, 7, 30, 365}

// Options configures a Reporter.
type Options struct {
	APIURL  string // e.g. https://api.github.com
	Repo    string // owner/name of the CVE database
	Token   string
	RPS     float64
	Retries int
	Backoff time.Duration
	HTTP    *http.Client
	Graph   contract.GraphLookup
	Logger  *log.Logger
}

// Reporter implements contract.CVEReporter.
type Reporter struct {
	client *httputil.Client
	apiURL string
	repo   string
	token  string
	graph  contract.GraphLookup
	logger *log.Logger

	// GitHub quota as of the last response
	remaining int
	reset     int64

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

var _ contract.CVEReporter = &Reporter{}

// New creates a reporter.
func New(opts Options) *Reporter {
	logger := opts.Logger
	if logger == nil {
		logger = logx.Discard()
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), len(openWindows)+2)
	}
	return &Reporter{
		client: httputil.New(httputil.Options{
			HTTPClient:    opts.HTTP,
			Retries:       opts.Retries,
			Backoff:       opts.Backoff,
			RetryStatuses: []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout}, // 404 is final
			Limiter:       limiter,
			Logger:        logger,
		}),
		apiURL:    strings.TrimRight(opts.APIURL, "/"),
		repo:      opts.Repo,
		token:     opts.Token,
		graph:     opts.Graph,
		logger:    logger,
		remaining: 100,
		reset:     -1,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type searchResult struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		Title string `json:"title"`
	} `json:"items"`
}

// Report builds the CVE report for the day updatedOn (YYYY-MM-DD).
// Any GitHub failure fails the whole report.
func (r *Reporter) Report(ctx context.Context, updatedOn string) (*schema.CVEReport, error) {
	day, err := contract.ParseDate(updatedOn)
	if err != nil {
		return nil, err
	}

	report := &schema.CVEReport{
		GitHubStats: schema.GitHubStats{OpenCount: make(map[string]int, len(openWindows))},
		Ingestion:   schema.CVEIngestion{Ingested: []string{}, Missed: []string{}},
	}

	end := day.AddDate(0, 0, -1).Format(schema.DateLayout)
	for _, days := range openWindows {
		start := day.AddDate(0, 0, -days).Format(schema.DateLayout)
		res, err := r.search(ctx, fmt.Sprintf("type:pr is:open created:%s..%s", start, end), nil)
		if err != nil {
			return nil, fmt.Errorf("open pull requests for %d days: %w", days, err)
		}
		report.GitHubStats.OpenCount[fmt.Sprintf("%d days", days)] = res.TotalCount
	}

	closed, err := r.search(ctx, "type:pr is:closed updated:"+updatedOn, nil)
	if err != nil {
		return nil, fmt.Errorf("closed pull requests: %w", err)
	}
	report.GitHubStats.FalsePositives = closed.TotalCount

	ids, err := r.mergedCVEIDs(ctx, updatedOn)
	if err != nil {
		return nil, err
	}
	report.Ingestion.Ingested, report.Ingestion.Missed = r.validate(ctx, ids)
	return report, nil
}

// mergedCVEIDs returns the CVE ids named at the end of the titles of pull requests merged on updatedOn.
func (r *Reporter) mergedCVEIDs(ctx context.Context, updatedOn string) ([]string, error) {
	extra := url.Values{"sort": {"updated"}, "order": {"desc"}, "per_page": {"100"}}
	res, err := r.search(ctx, "type:pr is:merged updated:"+updatedOn, extra)
	if err != nil {
		return nil, fmt.Errorf("merged pull requests: %w", err)
	}
	ids := make(map[string]struct{})
	for _, item := range res.Items {
		fields := strings.Fields(item.Title)
		if len(fields) == 0 {
			continue
		}
		if id := fields[len(fields)-1]; strings.HasPrefix(id, "CVE") {
			ids[id] = struct{}{}
		}
	}
	r.logger.Info("CVE ids picked from CVE database pull requests", "count", len(ids))
	return slices.Sorted(maps.Keys(ids)), nil
}

// validate splits ids by graph presence. Ids the graph could not answer for are left out of both lists.
func (r *Reporter) validate(ctx context.Context, ids []string) (ingested, missed []string) {
	ingested, missed = []string{}, []string{}
	if r.graph == nil || len(ids) == 0 {
		return ingested, missed
	}
	present := r.graph.PresentCVEs(ctx, ids)
	for _, id := range ids {
		found, ok := present[id]
		switch {
		case !ok:
			r.logger.Error("CVE graph validation failed", "cve", id)
		case found:
			ingested = append(ingested, id)
		default:
			missed = append(missed, id)
		}
	}
	return ingested, missed
}

// search runs one issue search scoped to the CVE database repo.
func (r *Reporter) search(ctx context.Context, query string, extra url.Values) (*searchResult, error) {
	if err := r.waitForQuota(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	for k, v := range extra {
		params[k] = v
	}
	params.Set("q", "repo:"+r.repo+" "+query)

	header := http.Header{"Accept": {"application/vnd.github.symmetra-preview+json"}}
	if r.token != "" {
		header.Set("Authorization", "token "+r.token)
	}

	var res searchResult
	respHeader, err := r.client.GetJSON(ctx, r.apiURL+"/search/issues?"+params.Encode(), header, &res)
	r.trackQuota(respHeader)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// waitForQuota blocks until the quota resets when the last response left at most one request.
func (r *Reporter) waitForQuota(ctx context.Context) error {
	if r.remaining > 1 || r.reset <= 0 {
		return nil
	}
	wait := time.Unix(r.reset, 0).Sub(r.now())
	if wait <= 0 {
		return nil
	}
	r.logger.Info("GitHub rate limit exceeded, waiting", "wait", wait.Round(time.Second))
	return r.sleep(ctx, wait)
}

func (r *Reporter) trackQuota(h http.Header) {
	if h == nil {
		return
	}
	if v, err := strconv.Atoi(h.Get("X-RateLimit-Remaining")); err == nil {
		r.remaining = v
	}
	if v, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		r.reset = v
	}
}
