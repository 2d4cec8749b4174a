package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/huangsam/stackreport/core"
	"github.com/huangsam/stackreport/core/collate"
	"github.com/huangsam/stackreport/core/ingest"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/cve"
	"github.com/huangsam/stackreport/internal/graph"
	"github.com/huangsam/stackreport/internal/httputil"
	"github.com/huangsam/stackreport/internal/ingestapi"
	"github.com/huangsam/stackreport/internal/metrics"
	"github.com/huangsam/stackreport/internal/objstore"
	"github.com/huangsam/stackreport/internal/rdb"
	"github.com/huangsam/stackreport/internal/registry"
	"github.com/huangsam/stackreport/internal/retrain"
	"github.com/huangsam/stackreport/internal/sentry"
)

// services holds everything a report run needs. Close releases the stores.
type services struct {
	stores    *rdb.StoreManager
	objects   contract.ObjectStore
	metrics   *metrics.Metrics
	assembler *core.Assembler
}

// Close releases the relational stores and the object store.
func (s *services) Close() error {
	return errors.Join(s.stores.Close(), s.objects.Close())
}

// openObjects opens the report document store configured in cfg.
// The SQL backend shares the run tracking database.
func openObjects(ctx context.Context, cfg *contract.Config) (contract.ObjectStore, error) {
	return objstore.New(ctx, objstore.Options{
		Backend:         cfg.ObjectBackend,
		DBBackend:       cfg.RunBackend,
		DBConnStr:       cfg.RunDBConnect,
		CredentialsFile: cfg.GCSCredentialsFile,
	})
}

// newServices connects the stores and builds the report assembler with every
// integration that cfg enables.
func newServices(ctx context.Context, cfg *contract.Config) (*services, error) {
	stores, err := rdb.NewStoreManager(cfg.SourceBackend, cfg.SourceDBConnect, cfg.RunBackend, cfg.RunDBConnect)
	if err != nil {
		return nil, err
	}
	objects, err := openObjects(ctx, cfg)
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}

	m := metrics.New()
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var lookup contract.GraphLookup = graph.NoneLookup{}
	if cfg.GremlinURL != "" {
		lookup = graph.New(graph.Options{
			URL: cfg.GremlinURL,
			HTTP: httputil.New(httputil.Options{
				HTTPClient: httpClient,
				Retries:    cfg.HTTPRetries,
				Backoff:    cfg.HTTPBackoff,
				Logger:     logger,
			}),
			BatchSize: cfg.GraphBatchSize,
			Logger:    logger,
			Metrics:   m,
		})
	}

	// Reconciliation reads known versions from the graph.
	var reconciler *ingest.Reconciler
	if cfg.GremlinURL != "" {
		reconciler = &ingest.Reconciler{
			Graph: lookup,
			Resolver: registry.New(registry.Options{
				RPS:     cfg.RegistryRPS,
				Retries: cfg.HTTPRetries,
				Backoff: cfg.HTTPBackoff,
				HTTP:    httpClient,
				Logger:  logger,
			}),
			Logger:  logger,
			Metrics: m,
		}
	} else {
		logger.Warn("No gremlin-url configured, skipping ingestion reconciliation")
	}

	a := &core.Assembler{
		Queries:    stores.Queries(),
		Store:      objects,
		Graph:      lookup,
		Reconciler: reconciler,
		Collator:   collate.NewEngine(objects, cfg.ReportBucket, logger),
		Runs:       stores.Runs(),

		Kind:             cfg.Worker,
		Bucket:           cfg.ReportBucket,
		Scope:            cfg.Scope,
		DeploymentPrefix: cfg.DeploymentPrefix,
		TopStacks:        cfg.TopStacks,
		TopDeps:          cfg.TopDeps,

		Logger:  logger,
		Metrics: m,
	}

	// Unconfigured integrations must stay nil interfaces.
	if cfg.IngestAPIURL != "" {
		client := ingestapi.New(ingestapi.Options{
			URL:     cfg.IngestAPIURL,
			Retries: cfg.HTTPRetries,
			Backoff: cfg.HTTPBackoff,
			HTTP:    httpClient,
			Logger:  logger,
		})
		a.Ingest = client
		if reconciler != nil {
			reconciler.Rectifier = client
		}
	}
	if cfg.GitHubToken != "" {
		a.CVE = cve.New(cve.Options{
			APIURL:  cfg.GitHubAPIURL,
			Repo:    cfg.CVEDBRepo,
			Token:   cfg.GitHubToken,
			RPS:     cve.DefaultSearchRPS,
			Retries: cfg.HTTPRetries,
			Backoff: cfg.HTTPBackoff,
			HTTP:    httpClient,
			Graph:   lookup,
			Logger:  logger,
		})
	}
	if cfg.SentryIssuesURL != "" {
		a.Sentry = sentry.New(sentry.Options{
			IssuesURL: cfg.SentryIssuesURL,
			TagsURL:   cfg.SentryTagsURL,
			Token:     cfg.SentryToken,
			Retries:   cfg.HTTPRetries,
			Backoff:   cfg.HTTPBackoff,
			HTTP:      httpClient,
			Logger:    logger,
		})
	}
	if cfg.EMRURL != "" {
		a.Exporter = &collate.Exporter{
			Store: objects,
			Retrain: retrain.New(retrain.Options{
				URL:     cfg.EMRURL,
				Retries: cfg.HTTPRetries,
				Backoff: cfg.HTTPBackoff,
				HTTP:    httpClient,
				Logger:  logger,
			}),
			Buckets: cfg.ModelBuckets,
			Repos:   cfg.TrainingRepos,
			Logger:  logger,
			Metrics: m,
		}
	}

	return &services{stores: stores, objects: objects, metrics: m, assembler: a}, nil
}

// newReader opens only the object store, for commands that read persisted reports.
func newReader(ctx context.Context, cfg *contract.Config) (*core.Reader, error) {
	objects, err := openObjects(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}
	return &core.Reader{Store: objects, Bucket: cfg.ReportBucket, Scope: cfg.Scope}, nil
}
