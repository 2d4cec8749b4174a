package algo

import (
	"slices"
	"strings"

	"github.com/huangsam/stackreport/schema"
)

// StackDelimiter joins normalized dependencies into a stack key.
const StackDelimiter = ","

// NormalizeDeps converts dependencies into sorted "name version" strings.
// The result does not depend on the input order.
func NormalizeDeps(deps []schema.Dependency) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, d.Name+" "+d.Version)
	}
	slices.Sort(out)
	return out
}

// StackKey joins a normalized dependency list into a stack identity.
func StackKey(normalized []string) string {
	return strings.Join(normalized, StackDelimiter)
}

// StackDepsCount maps each stack key to the number of dependencies it holds.
func StackDepsCount(stacks schema.FrequencyMap) schema.FrequencyMap {
	out := make(schema.FrequencyMap, len(stacks))
	for stack := range stacks {
		if stack == "" {
			out[stack] = 0
			continue
		}
		out[stack] = strings.Count(stack, StackDelimiter) + 1
	}
	return out
}

// PackageNames strips versions from a stack key, keeping dependency order.
func PackageNames(stack string) []string {
	parts := strings.Split(stack, StackDelimiter)
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		name, _, _ := strings.Cut(strings.TrimSpace(p), " ")
		names = append(names, name)
	}
	return names
}

// SplitDependencyKey parses a "name version" key. It returns false when either part is missing.
func SplitDependencyKey(key string) (schema.Dependency, bool) {
	fields := strings.Fields(key)
	if len(fields) != 2 {
		return schema.Dependency{}, false
	}
	return schema.Dependency{Name: fields[0], Version: fields[1]}, true
}
