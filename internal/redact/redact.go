// Package redact implements the per-record evaluation engine: classify
// every field, mask what fired, and fold the per-field signals into a
// single record-level PII verdict.
//
// Evaluation is a pure function of the input record. It runs in two
// phases: phase one classifies each field and computes masked candidates
// without committing anything; phase two applies the aggregation rule and
// commits either the masked or the original value per field. A standalone
// hit always flags the record; combinatorial hits only count when at least
// CombinationThreshold distinct fields fire, otherwise those fields keep
// their original values.
package redact

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dativo-io/scrub/internal/classifier"
	"github.com/dativo-io/scrub/internal/mask"
	scrubotel "github.com/dativo-io/scrub/internal/otel"
	"github.com/dativo-io/scrub/internal/record"
)

var tracer = scrubotel.Tracer("github.com/dativo-io/scrub/internal/redact")

// CombinationThreshold is the minimum count of distinct combinatorial
// fields required to flag a record on combinatorial evidence alone.
const CombinationThreshold = 2

// Evaluation is the outcome for a single record.
type Evaluation struct {
	// Record carries the redacted payload: same keys, same order as the
	// input, with committed masks applied.
	Record *record.Record `json:"record"`
	// IsPII is true iff at least one standalone field fired or at least
	// CombinationThreshold distinct combinatorial fields fired.
	IsPII bool `json:"is_pii"`
	// StandaloneFields lists fields masked as standalone PII, in record order.
	StandaloneFields []string `json:"standalone_fields,omitempty"`
	// CombinatorialFields lists combinatorial fields that fired, in record
	// order, whether or not their masks were committed.
	CombinatorialFields []string `json:"combinatorial_fields,omitempty"`
}

// Evaluator composes the field classifier and the masking transforms.
type Evaluator struct {
	classifier *classifier.Classifier
}

// New builds an Evaluator and verifies that every mask id the rule set
// references resolves to a registered transform, so a bad registry fails
// at startup rather than mid-batch.
func New(c *classifier.Classifier) (*Evaluator, error) {
	for _, id := range c.MaskIDs() {
		if mask.Lookup(id) == nil {
			return nil, fmt.Errorf("field rules reference unknown mask %q", id)
		}
	}
	return &Evaluator{classifier: c}, nil
}

// MustNew is like New but panics on error.
func MustNew(c *classifier.Classifier) *Evaluator {
	e, err := New(c)
	if err != nil {
		panic(fmt.Sprintf("redact.New: %v", err))
	}
	return e
}

type candidate struct {
	field    string
	category classifier.FieldCategory
	masked   string
}

// Evaluate classifies and redacts one record. The input record is never
// mutated; identical inputs always yield identical outputs. An empty
// record yields an empty redacted record and IsPII=false. Evaluate never
// fails: unrecognized fields, non-string values, and pattern near-misses
// all pass through unchanged (fail open).
func (e *Evaluator) Evaluate(ctx context.Context, rec *record.Record) *Evaluation {
	_, span := tracer.Start(ctx, "redact.evaluate")
	defer span.End()

	result := &Evaluation{}

	// Phase 1: classify and compute masked candidates, committing nothing.
	var candidates []candidate
	combinatorial := 0
	for _, field := range rec.Keys() {
		value, isString := rec.StringValue(field)
		if !isString {
			continue
		}
		category, maskID := e.classifier.Classify(field, value)
		if category == classifier.NonPII {
			continue
		}
		candidates = append(candidates, candidate{
			field:    field,
			category: category,
			masked:   mask.Lookup(maskID)(value),
		})
		switch category {
		case classifier.StandalonePII:
			result.StandaloneFields = append(result.StandaloneFields, field)
		case classifier.CombinatorialPII:
			result.CombinatorialFields = append(result.CombinatorialFields, field)
			combinatorial++
		}
	}

	// Phase 2: apply the aggregation rule and commit.
	commitCombinatorial := combinatorial >= CombinationThreshold
	result.IsPII = len(result.StandaloneFields) > 0 || commitCombinatorial

	redacted := rec.Clone()
	for _, c := range candidates {
		if c.category == classifier.CombinatorialPII && !commitCombinatorial {
			continue
		}
		redacted.SetString(c.field, c.masked)
	}
	result.Record = redacted

	span.SetAttributes(
		attribute.Bool("pii.detected", result.IsPII),
		attribute.Int("pii.standalone_fields", len(result.StandaloneFields)),
		attribute.Int("pii.combinatorial_fields", combinatorial),
	)

	return result
}
