// Package collate merges per-window stack frequencies into cumulative state and
// derives model training data from it.
package collate

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/huangsam/stackreport/core/algo"
	"github.com/huangsam/stackreport/internal/contract"
	"github.com/huangsam/stackreport/schema"
)

// Engine reads, merges and writes back collated state in the report bucket.
type Engine struct {
	store  contract.ObjectStore
	bucket string
	logger *log.Logger
}

// NewEngine creates a collation engine over an object store bucket.
func NewEngine(store contract.ObjectStore, bucket string, logger *log.Logger) *Engine {
	return &Engine{store: store, bucket: bucket, logger: logger}
}

// Collate merges this window's stack frequencies into the collated state of freq,
// persists the user input part, then folds in the bulk historical dataset.
// Missing previous state is treated as empty. A failed read of previous state aborts
// the merge so history is never overwritten by a partial view.
func (e *Engine) Collate(ctx context.Context, current map[schema.Ecosystem]schema.FrequencyMap, freq schema.Frequency) (schema.CollatedState, error) {
	key := schema.CollatedUserInputKey(freq)

	previous := schema.CollatedState{}
	found, err := e.store.GetJSON(ctx, e.bucket, key, &previous)
	if err != nil {
		return nil, fmt.Errorf("read collated state %s: %w", key, err)
	}
	if !found {
		e.logger.Info("No previous collated state, starting fresh", "key", key)
	}

	merged := MergeState(current, previous)
	if err := e.store.PutJSON(ctx, e.bucket, key, merged); err != nil {
		return nil, fmt.Errorf("write collated state %s: %w", key, err)
	}
	e.logger.Info("Stored collated user input", "key", key, "ecosystems", len(merged))

	bulk := map[schema.Ecosystem]schema.FrequencyMap{}
	if _, err := e.store.GetJSON(ctx, e.bucket, schema.CollatedBigQueryKey, &bulk); err != nil {
		e.logger.Error("Unable to read bulk historical data, continuing without it", "key", schema.CollatedBigQueryKey, "err", err)
		return merged, nil
	}
	return FoldBulkHistorical(merged, bulk), nil
}

// MergeState sums current frequencies into the user input stacks of previous state,
// over the union of ecosystems and stack keys. Neither input is modified.
func MergeState(current map[schema.Ecosystem]schema.FrequencyMap, previous schema.CollatedState) schema.CollatedState {
	out := make(schema.CollatedState, max(len(current), len(previous)))
	for _, eco := range unionKeys(current, previous) {
		out[eco] = schema.EcosystemCollation{
			UserInputStack: algo.MergeCounts(current[eco], previous[eco].UserInputStack),
		}
	}
	return out
}

// FoldBulkHistorical sums the bulk historical dataset into the bigquery part of state,
// over the union of ecosystems. Neither input is modified.
func FoldBulkHistorical(state schema.CollatedState, bulk map[schema.Ecosystem]schema.FrequencyMap) schema.CollatedState {
	out := make(schema.CollatedState, max(len(state), len(bulk)))
	maps.Copy(out, state)
	for eco, freq := range bulk {
		col := out[eco]
		col.BigQueryData = algo.MergeCounts(col.BigQueryData, freq)
		out[eco] = col
	}
	return out
}

func unionKeys[V1, V2 any](a map[schema.Ecosystem]V1, b map[schema.Ecosystem]V2) []schema.Ecosystem {
	set := make(map[schema.Ecosystem]struct{}, len(a)+len(b))
	for k := range a {
		set[k] = struct{}{}
	}
	for k := range b {
		set[k] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}
