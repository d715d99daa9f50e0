// Package generator wraps the natural-language-to-SQL providers. The engine
// treats everything a provider returns as an untrusted candidate statement;
// nothing here grants authority, it only produces text for the safety
// pipeline to judge.
package generator

import (
	"context"

	"github.com/queryshield/queryshield-engine/pkg/models"
	"github.com/queryshield/queryshield-engine/pkg/schema"
)

// OutcomeKind tags what the provider produced.
type OutcomeKind string

const (
	// OutcomeSQL means a candidate statement was produced.
	OutcomeSQL OutcomeKind = "sql"
	// OutcomeClarification means the provider needs a better question.
	OutcomeClarification OutcomeKind = "clarification"
	// OutcomeRefusal means the provider declined (access denied, off-topic,
	// or no usable SQL in the response).
	OutcomeRefusal OutcomeKind = "refusal"
)

// Outcome is the classified provider response. SQL is set only for
// OutcomeSQL; Message carries the clarification question or refusal text.
type Outcome struct {
	Kind    OutcomeKind
	SQL     string
	Message string
}

// PromptContext is everything the provider may see: the question, the
// role-filtered schema, and the row filter the generated SQL should already
// include. The full catalog is never exposed.
type PromptContext struct {
	Question  string
	Schema    *schema.Catalog
	RowFilter string
	Identity  models.Identity
}

// Generator produces a candidate statement for a question.
type Generator interface {
	Generate(ctx context.Context, pc PromptContext) (Outcome, error)
}
