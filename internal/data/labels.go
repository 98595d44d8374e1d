package data

import (
	"sort"
	"strconv"
	"strings"
)

// SortLabels returns the distinct labels in sorted order. When every label parses as a number
// the order is numeric, otherwise lexicographic.
func SortLabels(labels ...[]string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, set := range labels {
		for _, l := range set {
			if !seen[l] {
				seen[l] = true
				unique = append(unique, l)
			}
		}
	}

	numeric := make(map[string]float64, len(unique))
	for _, l := range unique {
		v, err := strconv.ParseFloat(strings.TrimSpace(l), 64)
		if err != nil {
			numeric = nil
			break
		}
		numeric[l] = v
	}

	if numeric != nil {
		sort.SliceStable(unique, func(i, j int) bool {
			if numeric[unique[i]] == numeric[unique[j]] {
				return unique[i] < unique[j]
			}
			return numeric[unique[i]] < numeric[unique[j]]
		})
	} else {
		sort.Strings(unique)
	}

	return unique
}
