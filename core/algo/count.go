// Package algo has the frequency, normalization and ranking primitives used by report aggregation.
package algo

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/huangsam/stackreport/schema"
)

// CountKeys counts occurrences of scalar keys. Non-scalar elements are skipped with a warning.
// If counting fails midway, an empty map is returned instead of a partial one.
func CountKeys(logger *log.Logger, keys []any) (counts schema.FrequencyMap) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Key counting failed, returning empty frequencies", "err", r)
			counts = schema.FrequencyMap{}
		}
	}()

	counts = make(schema.FrequencyMap, len(keys))
	for i, k := range keys {
		s, ok := ScalarKey(k)
		if !ok {
			logger.Warn("Skipping non-scalar key", "index", i, "type", fmt.Sprintf("%T", k))
			continue
		}
		counts[s]++
	}
	return counts
}

// CountStrings counts occurrences of string keys.
func CountStrings(keys []string) schema.FrequencyMap {
	counts := make(schema.FrequencyMap, len(keys))
	for _, k := range keys {
		counts[k]++
	}
	return counts
}

// ScalarKey renders v as a frequency key. It returns false for nil, maps, slices and structs.
func ScalarKey(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}
