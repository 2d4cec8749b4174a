package algo

import (
	"maps"

	"github.com/huangsam/stackreport/schema"
)

// MergeCounts sums two frequency maps over the union of their keys.
// Neither input is modified.
func MergeCounts(a, b schema.FrequencyMap) schema.FrequencyMap {
	out := make(schema.FrequencyMap, max(len(a), len(b)))
	maps.Copy(out, a)
	for k, v := range b {
		out[k] += v
	}
	return out
}
