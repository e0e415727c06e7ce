package ml

import (
	"sort"
	"strconv"
)

// UniqueLabels returns the distinct values of y in category order: numeric
// order when every label parses as a number, lexical order otherwise.
func UniqueLabels(y []string) []string {
	set := make(map[string]struct{}, 8)
	out := make([]string, 0, 8)
	for _, v := range y {
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		out = append(out, v)
	}
	sortLabels(out)
	return out
}

func sortLabels(labels []string) {
	nums := make([]float64, len(labels))
	numeric := true
	for i, l := range labels {
		f, err := strconv.ParseFloat(l, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = f
	}
	if !numeric {
		sort.Strings(labels)
		return
	}
	idx := make([]int, len(labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return nums[idx[a]] < nums[idx[b]] })
	sorted := make([]string, len(labels))
	for i, j := range idx {
		sorted[i] = labels[j]
	}
	copy(labels, sorted)
}

// EncodeLabels maps y onto dense codes 0..k-1 derived from the values present
// in y alone, returned as decimal strings, plus the category order used.
func EncodeLabels(y []string) ([]string, []string) {
	classes := UniqueLabels(y)
	index := classIndex(classes)
	coded := make([]string, len(y))
	for i, v := range y {
		coded[i] = strconv.Itoa(index[v])
	}
	return coded, classes
}

func classIndex(classes []string) map[string]int {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	return index
}
