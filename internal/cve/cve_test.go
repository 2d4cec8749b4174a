package cve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeGitHub answers issue searches by matching on the query string.
type fakeGitHub struct {
	mu      sync.Mutex
	queries []string
	headers http.Header
	status  int
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	for k, v := range f.headers {
		w.Header()[k] = v
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}

	res := map[string]any{"total_count": 0, "items": []any{}}
	switch {
	case strings.Contains(q, "is:open created:2018-08-21..2018-08-22"):
		res["total_count"] = 1
	case strings.Contains(q, "is:open created:2018-08-16..2018-08-22"):
		res["total_count"] = 4
	case strings.Contains(q, "is:open created:2018-07-24..2018-08-22"):
		res["total_count"] = 9
	case strings.Contains(q, "is:open created:2017-08-23..2018-08-22"):
		res["total_count"] = 40
	case strings.Contains(q, "is:closed"):
		res["total_count"] = 2
	case strings.Contains(q, "is:merged"):
		res["total_count"] = 4
		res["items"] = []map[string]string{
			{"title": "[npm] Add CVE-2018-3721"},
			{"title": "[maven] Add CVE-2018-1000"},
			{"title": "Fix typo in README"},
			{"title": "[npm] Add CVE-2018-3721"},
			{"title": ""},
		}
	}
	_ = json.NewEncoder(w).Encode(res)
}

func newReporter(t *testing.T, f *fakeGitHub, graph contract.GraphLookup) *Reporter {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(Options{APIURL: srv.URL + "/", Repo: "codeready-analytics/cvedb", Token: "secret", Graph: graph})
}

func TestReport(t *testing.T) {
	graph := &contract.MockGraphLookup{}
	graph.On("PresentCVEs", mock.Anything, []string{"CVE-2018-1000", "CVE-2018-3721"}).
		Return(map[string]bool{"CVE-2018-1000": false, "CVE-2018-3721": true})
	f := &fakeGitHub{}
	r := newReporter(t, f, graph)

	report, err := r.Report(context.Background(), "2018-08-23")
	require.NoError(t, err)
	assert.Equal(t, &schema.CVEReport{
		GitHubStats: schema.GitHubStats{
			OpenCount:      map[string]int{"2 days": 1, "7 days": 4, "30 days": 9, "365 days": 40},
			FalsePositives: 2,
		},
		Ingestion: schema.CVEIngestion{Ingested: []string{"CVE-2018-3721"}, Missed: []string{"CVE-2018-1000"}},
	}, report)

	require.Len(t, f.queries, 6)
	for _, q := range f.queries {
		assert.True(t, strings.HasPrefix(q, "repo:codeready-analytics/cvedb type:pr "), q)
	}
	graph.AssertExpectations(t)
}

func TestReportSkipsUnansweredCVEs(t *testing.T) {
	graph := &contract.MockGraphLookup{}
	graph.On("PresentCVEs", mock.Anything, mock.Anything).Return(map[string]bool{"CVE-2018-3721": true})
	r := newReporter(t, &fakeGitHub{}, graph)

	report, err := r.Report(context.Background(), "2018-08-23")
	require.NoError(t, err)
	assert.Equal(t, []string{"CVE-2018-3721"}, report.Ingestion.Ingested)
	assert.Empty(t, report.Ingestion.Missed)
}

func TestReportWithoutGraph(t *testing.T) {
	r := newReporter(t, &fakeGitHub{}, nil)
	report, err := r.Report(context.Background(), "2018-08-23")
	require.NoError(t, err)
	assert.Empty(t, report.Ingestion.Ingested)
	assert.Empty(t, report.Ingestion.Missed)
}

func TestReportFailures(t *testing.T) {
	t.Run("bad date", func(t *testing.T) {
		r := newReporter(t, &fakeGitHub{}, nil)
		_, err := r.Report(context.Background(), "23-08-2018")
		assert.ErrorIs(t, err, contract.ErrInvalidDateFormat)
	})
	t.Run("github error", func(t *testing.T) {
		r := newReporter(t, &fakeGitHub{status: http.StatusUnprocessableEntity}, nil)
		report, err := r.Report(context.Background(), "2018-08-23")
		assert.Error(t, err)
		assert.Nil(t, report)
	})
}

func TestSearchSendsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"total_count": 0, "items": []}`))
	}))
	defer srv.Close()

	r := New(Options{APIURL: srv.URL, Repo: "a/b", Token: "secret"})
	_, err := r.search(context.Background(), "type:pr", nil)
	require.NoError(t, err)
	assert.Equal(t, "token secret", got.Get("Authorization"))
	assert.Equal(t, "application/vnd.github.symmetra-preview+json", got.Get("Accept"))
}

func TestWaitsForQuotaReset(t *testing.T) {
	now := time.Date(2018, 8, 23, 10, 0, 0, 0, time.UTC)
	f := &fakeGitHub{headers: http.Header{
		"X-Ratelimit-Remaining": {"1"},
		"X-Ratelimit-Reset":     {strconv.FormatInt(now.Add(30*time.Second).Unix(), 10)},
	}}
	r := newReporter(t, f, nil)
	r.now = func() time.Time { return now }
	var waits []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_, err := r.search(context.Background(), "type:pr", nil)
	require.NoError(t, err)
	assert.Empty(t, waits, "first call uses the initial quota")
	assert.Equal(t, 1, r.remaining)

	_, err = r.search(context.Background(), "type:pr", nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{30 * time.Second}, waits)
}

func TestTrackQuotaIgnoresMissingHeaders(t *testing.T) {
	r := New(Options{})
	r.trackQuota(http.Header{})
	r.trackQuota(nil)
	assert.Equal(t, 100, r.remaining)
	assert.Equal(t, int64(-1), r.reset)
}
