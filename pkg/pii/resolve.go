package pii

import (
	"fmt"
	"sort"
	"strings"
)

// MergePolicy decides the category and range of a merged span.
type MergePolicy int

const (
	// MergeLongest labels a group with the category of its longest span
	// (ties: lowest start, then smallest category name). The merged range is
	// the union of the group so chained overlaps stay covered.
	MergeLongest MergePolicy = iota
	// MergeConcat labels a group with all distinct categories of its spans,
	// sorted and joined by CategorySeparator, over the union range.
	MergeConcat
)

// CategorySeparator joins categories under MergeConcat.
const CategorySeparator = "|"

// ParseMergePolicy converts a configuration string into a MergePolicy.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "longest":
		return MergeLongest, nil
	case "concat":
		return MergeConcat, nil
	default:
		return 0, fmt.Errorf("unknown merge policy %q (want longest or concat)", s)
	}
}

func (p MergePolicy) String() string {
	switch p {
	case MergeLongest:
		return "longest"
	case MergeConcat:
		return "concat"
	default:
		return fmt.Sprintf("MergePolicy(%d)", int(p))
	}
}

// Resolve merges spans into a set of pairwise non-overlapping spans sorted by
// start offset. Spans are grouped by transitive overlap: if A overlaps B and
// B overlaps C then A, B and C form one group even when A and C are disjoint.
// Every input span is contained in exactly one output span. The result does
// not depend on the order of the input.
func Resolve(spans []Span, policy MergePolicy) []Span {
	if len(spans) == 0 {
		return nil
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Category < b.Category
	})

	var out []Span
	first := 0
	groupEnd := sorted[0].End
	for i := 1; i < len(sorted); i++ {
		sp := sorted[i]
		// Strict inequality: a span starting exactly where the group ends is
		// adjacent, not overlapping.
		if sp.Start < groupEnd {
			if sp.End > groupEnd {
				groupEnd = sp.End
			}
			continue
		}
		out = append(out, mergeGroup(sorted[first:i], groupEnd, policy))
		first = i
		groupEnd = sp.End
	}
	out = append(out, mergeGroup(sorted[first:], groupEnd, policy))
	return out
}

// mergeGroup collapses one connected group. Because the input is sorted by
// start, group[0].Start is the smallest start in the group.
func mergeGroup(group []Span, end int, policy MergePolicy) Span {
	merged := Span{Start: group[0].Start, End: end}
	switch policy {
	case MergeConcat:
		merged.Category = joinCategories(group)
	default:
		merged.Category = representative(group).Category
	}
	return merged
}

// representative picks the longest span; ties go to the lowest start and
// then to the lexicographically smallest category.
func representative(group []Span) Span {
	best := group[0]
	for _, sp := range group[1:] {
		switch {
		case sp.Len() > best.Len():
			best = sp
		case sp.Len() < best.Len():
		case sp.Start < best.Start:
			best = sp
		case sp.Start == best.Start && sp.Category < best.Category:
			best = sp
		}
	}
	return best
}

func joinCategories(group []Span) string {
	seen := make(map[string]bool, len(group))
	var cats []string
	for _, sp := range group {
		if !seen[sp.Category] {
			seen[sp.Category] = true
			cats = append(cats, sp.Category)
		}
	}
	sort.Strings(cats)
	return strings.Join(cats, CategorySeparator)
}
