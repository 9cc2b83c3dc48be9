// Package pii finds personally identifiable information in page text and
// reconciles the findings of several independent detectors into a single,
// non-overlapping set of spans.
//
// Two detector families are provided:
//
// - Ruleset: an ordered registry of named regular expressions
// - EntityDetector: an external named-entity recognizer mapped onto PII categories
//
// Both produce Spans over the same page text. Resolve merges the union of
// those spans so that every input span is covered by exactly one output span
// and no two output spans overlap.
//
// Main Functions:
//
// - DefaultRules: The built-in pattern registry
// - Ruleset.Detect: Pattern matching over one page of text
// - EntityDetector.Detect: Entity recognition mapped to categories
// - Resolve: Overlap resolution under a fixed MergePolicy
package pii

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrEngineUnavailable is returned when an external detection engine cannot
// be reached or has no model loaded at construction time.
var ErrEngineUnavailable = errors.New("detection engine unavailable")

// Span is a categorized interval over one page's extracted text.
// Start and End are UTF-8 byte offsets, End is exclusive.
type Span struct {
	Start    int
	End      int
	Category string
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether the two spans share at least one byte.
// Adjacent spans (a.End == b.Start) do not overlap.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && s.End > o.Start
}

// Contains reports whether o lies fully inside s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

func (s Span) String() string {
	return fmt.Sprintf("%s[%d:%d]", s.Category, s.Start, s.End)
}

// Detector finds spans in a page of text.
// Implementations must be safe for concurrent use.
type Detector interface {
	Name() string
	Detect(ctx context.Context, text string) ([]Span, error)
}

// ValidSpans drops spans whose offsets do not address a non-empty,
// rune-aligned substring of text.
func ValidSpans(text string, spans []Span) []Span {
	out := make([]Span, 0, len(spans))
	for _, sp := range spans {
		if sp.Start < 0 || sp.End > len(text) || sp.Start >= sp.End {
			continue
		}
		if !isRuneBoundary(text, sp.Start) || !isRuneBoundary(text, sp.End) {
			continue
		}
		out = append(out, sp)
	}
	return out
}

func isRuneBoundary(s string, i int) bool {
	if i == 0 || i == len(s) {
		return true
	}
	return utf8.RuneStart(s[i])
}
