package algo

import (
	"cmp"
	"slices"

	"github.com/huangsam/stackreport/schema"
)

// TopN returns the n entries with the highest counts, ordered by count descending.
// Equal counts are ordered by key ascending. If n is greater than the number
// of entries, all entries are returned in sorted order. The input is not modified.
func TopN(freq schema.FrequencyMap, n int) []schema.TrendEntry {
	entries := make([]schema.TrendEntry, 0, len(freq))
	for k, v := range freq {
		entries = append(entries, schema.TrendEntry{Name: k, Count: v})
	}
	slices.SortFunc(entries, func(a, b schema.TrendEntry) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if n < 0 {
		n = 0
	}
	if len(entries) > n {
		return entries[:n]
	}
	return entries
}
