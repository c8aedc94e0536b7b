package runner

import (
	"slices"
	"strings"
)

// MergeRequirements unions every source, drops blanks and sorts the result.
func MergeRequirements(sources ...[]string) []string {
	var merged []string
	for _, src := range sources {
		for _, req := range src {
			if req = strings.TrimSpace(req); req != "" {
				merged = append(merged, req)
			}
		}
	}
	if len(merged) == 0 {
		return nil
	}
	slices.Sort(merged)
	return slices.Compact(merged)
}

// SplitRequirements reads a comma separated requirements field.
func SplitRequirements(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	return strings.Split(field, ",")
}
