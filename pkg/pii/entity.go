package pii

import (
	"context"
	"fmt"
)

// Entity categories produced by EntityDetector.
const (
	CategoryPersonName = "person_name"
	CategoryAddress    = "address"
)

// EntityKind is the label vocabulary of the external recognizer
// (OntoNotes style, as emitted by spaCy pipelines).
type EntityKind string

// Entity kinds the recognizer may report. Only a subset maps to PII.
const (
	KindPerson   EntityKind = "PERSON"
	KindGPE      EntityKind = "GPE"
	KindLocation EntityKind = "LOC"
	KindFacility EntityKind = "FAC"
	KindOrg      EntityKind = "ORG"
	KindNORP     EntityKind = "NORP"
	KindDate     EntityKind = "DATE"
	KindTime     EntityKind = "TIME"
	KindMoney    EntityKind = "MONEY"
	KindCardinal EntityKind = "CARDINAL"
)

// Entity is one recognizer hit. Start and End are byte offsets into the
// text passed to Recognize.
type Entity struct {
	Start int
	End   int
	Kind  EntityKind
}

// Recognizer is the external named-entity recognition engine.
// Implementations must be safe for concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
}

// EntityCategory maps a recognizer kind onto a PII category. The second
// result is false for kinds that are not PII; those entities are ignored
// rather than given a guessed label.
func EntityCategory(kind EntityKind) (string, bool) {
	switch kind {
	case KindPerson:
		return CategoryPersonName, true
	case KindGPE, KindLocation, KindFacility:
		return CategoryAddress, true
	case KindOrg, KindNORP, KindDate, KindTime, KindMoney, KindCardinal:
		return "", false
	default:
		return "", false
	}
}

// EntityDetector adapts a Recognizer to the Detector interface.
type EntityDetector struct {
	rec Recognizer
}

// NewEntityDetector wraps rec. A nil recognizer means the engine was never
// loaded, which is a construction-time failure.
func NewEntityDetector(rec Recognizer) (*EntityDetector, error) {
	if rec == nil {
		return nil, fmt.Errorf("entity detector: %w", ErrEngineUnavailable)
	}
	return &EntityDetector{rec: rec}, nil
}

// Name implements Detector.
func (d *EntityDetector) Name() string { return "entities" }

// Detect runs the recognizer and keeps the entities whose kind maps to a
// PII category.
func (d *EntityDetector) Detect(ctx context.Context, text string) ([]Span, error) {
	ents, err := d.rec.Recognize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("entity detector: %w", err)
	}
	spans := make([]Span, 0, len(ents))
	for _, e := range ents {
		cat, ok := EntityCategory(e.Kind)
		if !ok {
			continue
		}
		spans = append(spans, Span{Start: e.Start, End: e.End, Category: cat})
	}
	return spans, nil
}
