package collate

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/huangsam/stackreport/core/algo"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/internal/metrics"
	"github.com/huangsam/stackreport/schema"
)

// BuildTrainingData reduces collated stacks of one ecosystem to distinct package-name lists.
// User input stacks are visited before bulk historical ones, each in key order; the first
// stack with a given name list wins.
func BuildTrainingData(eco schema.Ecosystem, col schema.EcosystemCollation) schema.TrainingData {
	seen := map[string]struct{}{}
	pick := func(freq schema.FrequencyMap) [][]string {
		lists := [][]string{}
		for _, stack := range slices.Sorted(maps.Keys(freq)) {
			names := algo.PackageNames(stack)
			id := strings.Join(names, algo.StackDelimiter)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			lists = append(lists, names)
		}
		return lists
	}

	return schema.TrainingData{
		Ecosystem: eco,
		PackageDict: schema.PackageLists{
			UserInputStack: pick(col.UserInputStack),
			BigQueryData:   pick(col.BigQueryData),
		},
	}
}

// Exporter writes training manifests to model buckets and triggers retraining.
type Exporter struct {
	Store   contract.ObjectStore
	Retrain contract.RetrainTrigger
	Buckets map[schema.Ecosystem]string
	Repos   map[schema.Ecosystem]string
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Export stores one manifest per ecosystem under dataVersion and invokes retraining for it.
// Ecosystems without a model bucket are skipped. Failures are logged per ecosystem.
// It returns the ecosystems for which retraining was triggered.
func (x *Exporter) Export(ctx context.Context, state schema.CollatedState, dataVersion string) []schema.Ecosystem {
	key := schema.TrainingManifestKey(dataVersion)
	var triggered []schema.Ecosystem

	for _, eco := range slices.Sorted(maps.Keys(state)) {
		bucket := x.Buckets[eco]
		if bucket == "" {
			x.Logger.Warn("No model bucket configured, skipping training export", "ecosystem", eco)
			continue
		}

		data := BuildTrainingData(eco, state[eco])
		x.Logger.Info("Storing training data", "ecosystem", eco, "bucket", bucket, "key", key)
		if err := x.Store.PutJSON(ctx, bucket, key, data); err != nil {
			x.Logger.Error("Unable to store training data", "ecosystem", eco, "err", err)
			x.Metrics.IntegrationFailed("training_store")
			continue
		}

		err := x.Retrain.Invoke(ctx, bucket, eco, dataVersion, x.Repos[eco])
		x.Metrics.Retrain(string(eco), err)
		if err != nil {
			x.Logger.Error("Failed to invoke retraining", "ecosystem", eco, "err", err)
			continue
		}
		triggered = append(triggered, eco)
	}
	return triggered
}
