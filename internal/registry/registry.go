// Package registry resolves the actual latest version of packages from their public registries.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/httputil"
	"github.com/huangsam/stackreport/internal/logx"
	"github.com/huangsam/stackreport/schema"
	"golang.org/x/mod/module"
	"golang.org/x/time/rate"
)

// ErrNotFound means the registry does not know the package.
var ErrNotFound = errors.New("package not found in public registry")

// Default registry endpoints.
const (
	DefaultNPMURL   = "https://registry.npmjs.org"
	DefaultPyPIURL  = "https://pypi.org"
	DefaultMavenURL = "https://search.maven.org"
	DefaultGoURL    = "https://proxy.golang.org"
)

// Options configures a Resolver. Empty URLs select the public defaults.
type Options struct {
	NPMURL   string
	PyPIURL  string
	MavenURL string
	GoURL    string

	RPS     float64 // requests per second across all registries
	Retries int
	Backoff time.Duration
	HTTP    *http.Client
	Logger  *log.Logger
}

// Resolver implements contract.VersionResolver against the public registries.
type Resolver struct {
	client *httputil.Client
	urls   map[schema.Ecosystem]string
	logger *log.Logger
}

var _ contract.VersionResolver = &Resolver{}

// New creates a rate-limited resolver. 404 is a final answer here, not a transient status.
func New(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = logx.Discard()
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return &Resolver{
		client: httputil.New(httputil.Options{
			HTTPClient:    opts.HTTP,
			Retries:       opts.Retries,
			Backoff:       opts.Backoff,
			RetryStatuses: []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout},
			Limiter:       limiter,
			Logger:        logger,
		}),
		urls: map[schema.Ecosystem]string{
			schema.NPM:    trimURL(opts.NPMURL, DefaultNPMURL),
			schema.PyPI:   trimURL(opts.PyPIURL, DefaultPyPIURL),
			schema.Maven:  trimURL(opts.MavenURL, DefaultMavenURL),
			schema.Golang: trimURL(opts.GoURL, DefaultGoURL),
		},
		logger: logger,
	}
}

func trimURL(u, def string) string {
	if u == "" {
		u = def
	}
	return strings.TrimRight(u, "/")
}

// LatestVersion returns the latest published version of pkg, or "" when the registry does not know it.
func (r *Resolver) LatestVersion(ctx context.Context, eco schema.Ecosystem, pkg string) (string, error) {
	var (
		version string
		err     error
	)
	switch eco {
	case schema.NPM:
		version, err = r.npm(ctx, pkg)
	case schema.PyPI:
		version, err = r.pypi(ctx, pkg)
	case schema.Maven:
		version, err = r.maven(ctx, pkg)
	case schema.Golang:
		version, err = r.golang(ctx, pkg)
	default:
		return "", fmt.Errorf("no registry for ecosystem %q", eco)
	}
	if errors.Is(err, ErrNotFound) {
		r.logger.Debug("Package not public", "ecosystem", eco, "package", pkg)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s/%s: %w", eco, pkg, err)
	}
	return version, nil
}

// getJSON fetches u into out, mapping a 404 to ErrNotFound.
func (r *Resolver) getJSON(ctx context.Context, u string, out any) error {
	_, err := r.client.GetJSON(ctx, u, nil, out)
	if httputil.IsStatus(err, http.StatusNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *Resolver) npm(ctx context.Context, pkg string) (string, error) {
	var doc struct {
		DistTags struct {
			Latest string `json:"latest"`
		} `json:"dist-tags"`
	}
	// Scoped names keep their @ but the slash is escaped
	if err := r.getJSON(ctx, r.urls[schema.NPM]+"/"+url.PathEscape(pkg), &doc); err != nil {
		return "", err
	}
	if doc.DistTags.Latest == "" {
		return "", ErrNotFound
	}
	return doc.DistTags.Latest, nil
}

func (r *Resolver) pypi(ctx context.Context, pkg string) (string, error) {
	var doc struct {
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	if err := r.getJSON(ctx, r.urls[schema.PyPI]+"/pypi/"+url.PathEscape(pkg)+"/json", &doc); err != nil {
		return "", err
	}
	if doc.Info.Version == "" {
		return "", ErrNotFound
	}
	return doc.Info.Version, nil
}

// maven resolves "groupId:artifactId" through the Maven Central search API.
func (r *Resolver) maven(ctx context.Context, pkg string) (string, error) {
	group, artifact, ok := strings.Cut(pkg, ":")
	if !ok || group == "" || artifact == "" {
		return "", ErrNotFound
	}
	q := url.Values{}
	q.Set("q", fmt.Sprintf("g:%q AND a:%q", group, artifact))
	q.Set("rows", "1")
	q.Set("wt", "json")

	var doc struct {
		Response struct {
			Docs []struct {
				LatestVersion string `json:"latestVersion"`
			} `json:"docs"`
		} `json:"response"`
	}
	if err := r.getJSON(ctx, r.urls[schema.Maven]+"/solrsearch/select?"+q.Encode(), &doc); err != nil {
		return "", err
	}
	if len(doc.Response.Docs) == 0 || doc.Response.Docs[0].LatestVersion == "" {
		return "", ErrNotFound
	}
	return doc.Response.Docs[0].LatestVersion, nil
}

func (r *Resolver) golang(ctx context.Context, pkg string) (string, error) {
	var doc struct {
		Version string `json:"Version"`
	}
	escaped, err := module.EscapePath(pkg)
	if err != nil {
		r.logger.Debug("Not a valid module path", "module", pkg, "err", err)
		return "", ErrNotFound
	}
	if err := r.getJSON(ctx, r.urls[schema.Golang]+"/"+escaped+"/@latest", &doc); err != nil {
		return "", err
	}
	if doc.Version == "" {
		return "", ErrNotFound
	}
	return doc.Version, nil
}
