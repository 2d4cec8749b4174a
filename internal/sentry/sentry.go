// Package sentry builds the daily error report from the Sentry issues API.
package sentry

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

// Options configures a Reporter.
type Options struct {
	IssuesURL string // project issues endpoint
	TagsURL   string // issues endpoint prefix for latest events
	Token     string
	Retries   int
	Backoff   time.Duration
	HTTP      *http.Client
	Logger    *log.Logger
}

// Reporter implements contract.SentryReporter.
type Reporter struct {
	client    *httputil.Client
	issuesURL string
	tagsURL   string
	token     string
	logger    *log.Logger
}

var _ contract.SentryReporter = &Reporter{}

// New creates a reporter.
func New(opts Options) *Reporter {
	logger := opts.Logger
	if logger == nil {
		logger = logx.Discard()
	}
	tags := opts.TagsURL
	if tags != "" && !strings.HasSuffix(tags, "/") {
		tags += "/"
	}
	return &Reporter{
		client: httputil.New(httputil.Options{
			HTTPClient:    opts.HTTP,
			Retries:       opts.Retries,
			Backoff:       opts.Backoff,
			RetryStatuses: []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout},
			Logger:        logger,
		}),
		issuesURL: opts.IssuesURL,
		tagsURL:   tags,
		token:     opts.Token,
		logger:    logger,
	}
}

type issue struct {
	ID       string `json:"id"`
	LastSeen string `json:"lastSeen"`
	Metadata struct {
		Type  string `json:"type"`
		Value string `json:"value"`
		Title string `json:"title"`
	} `json:"metadata"`
}

// message is "type: value" when the issue carries an exception type, the title otherwise.
func (i issue) message() string {
	if i.Metadata.Type != "" {
		return i.Metadata.Type + ": " + i.Metadata.Value
	}
	return i.Metadata.Title
}

type frame struct {
	Filename string  `json:"filename"`
	LineNo   int     `json:"lineNo"`
	Function string  `json:"function"`
	Context  [][]any `json:"context"`
}

type event struct {
	Tags []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"tags"`
	Entries []struct {
		Type string `json:"type"`
		Data struct {
			Values []struct {
				Stacktrace *struct {
					Frames []frame `json:"frames"`
				} `json:"stacktrace"`
			} `json:"values"`
		} `json:"data"`
	} `json:"entries"`
}

func (r *Reporter) header() http.Header {
	return http.Header{"Authorization": {"Bearer " + r.token}}
}

// Report fetches the issues of the last 24 hours and groups them by server name.
// An issue whose latest event has no server_name tag is skipped.
func (r *Reporter) Report(ctx context.Context) (*schema.SentryReport, error) {
	var issues []issue
	if _, err := r.client.GetJSON(ctx, r.issuesURL+"?statsPeriod=24h", r.header(), &issues); err != nil {
		return nil, fmt.Errorf("list sentry issues: %w", err)
	}

	report := &schema.SentryReport{ErrorReport: make(map[string]*schema.SentryServerErrors)}
	for _, is := range issues {
		ev, err := r.latestEvent(ctx, is.ID)
		if err != nil {
			r.logger.Error("Unable to fetch latest sentry event", "issue", is.ID, "err", err)
			continue
		}
		pod := ev.serverName()
		if pod == "" {
			r.logger.Warn("Sentry event has no server_name tag", "issue", is.ID)
			continue
		}

		server := ServerName(pod)
		group, ok := report.ErrorReport[server]
		if !ok {
			group = &schema.SentryServerErrors{}
			report.ErrorReport[server] = group
		}
		group.TotalErrors++
		group.Errors = append(group.Errors, schema.SentryError{
			ID:         is.ID,
			LastSeen:   is.LastSeen,
			Pod:        pod,
			Message:    is.message(),
			Stacktrace: ev.stacktrace(),
		})
	}
	return report, nil
}

func (r *Reporter) latestEvent(ctx context.Context, issueID string) (*event, error) {
	var ev event
	if _, err := r.client.GetJSON(ctx, r.tagsURL+issueID+"/events/latest/", r.header(), &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (e *event) serverName() string {
	for _, t := range e.Tags {
		if t.Key == "server_name" {
			return t.Value
		}
	}
	return ""
}

// stacktrace flattens the frames of the exception entry into one line.
func (e *event) stacktrace() string {
	if len(e.Entries) < 2 || e.Entries[1].Type != "exception" {
		return "Not Available"
	}
	values := e.Entries[1].Data.Values
	if len(values) == 0 || values[0].Stacktrace == nil {
		return "Not Available"
	}

	var b strings.Builder
	for _, f := range values[0].Stacktrace.Frames {
		fmt.Fprintf(&b, "File %s, Line %d, Function %s", f.Filename, f.LineNo, f.Function)
		if stmt, ok := f.statement(); ok {
			b.WriteString(", Statement " + stmt)
		}
		b.WriteString(" || ")
	}
	return b.String()
}

// statement returns the source line of the frame's own line number from its context.
func (f frame) statement() (string, bool) {
	for _, c := range f.Context {
		if len(c) < 2 {
			continue
		}
		if n, ok := c[0].(float64); ok && int(n) == f.LineNo {
			if s, ok := c[1].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

// ServerName drops the two generated suffixes of a pod name,
// e.g. "bayesian-api-12-abcde" becomes "bayesian-api".
func ServerName(pod string) string {
	parts := strings.Split(pod, "-")
	if len(parts) <= 2 {
		return ""
	}
	return strings.Join(parts[:len(parts)-2], "-")
}
