// Package pipeline sequences the query authorization and execution flow:
// generated SQL is authorized, rewritten with row filters, audited, and
// only then executed. Any denial short-circuits to a structured result
// without reaching the database.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/queryshield/queryshield-engine/pkg/generator"
	"github.com/queryshield/queryshield-engine/pkg/logging"
	"github.com/queryshield/queryshield-engine/pkg/models"
	"github.com/queryshield/queryshield-engine/pkg/policy"
	"github.com/queryshield/queryshield-engine/pkg/schema"
	"github.com/queryshield/queryshield-engine/pkg/sqlguard"
)

// QueryRunner abstracts the executor so tests can run the pipeline without
// a database.
type QueryRunner interface {
	Execute(ctx context.Context, sql string) (*models.ExecutionResult, error)
}

// Auditor is the audit sink the pipeline reports to. All calls are
// fire-and-forget.
type Auditor interface {
	sqlguard.SecurityLogger
	LogSensitiveAccess(ctx context.Context, identity models.Identity, sql string, columns []string)
	LogQueryExecution(ctx context.Context, identity models.Identity, sql string, rowCount int, elapsed time.Duration)
	LogExecutionFailure(ctx context.Context, identity models.Identity, sql string, execErr error)
}

// Pipeline owns the per-request flow. All referenced state (catalog,
// policy) is immutable after construction, so one Pipeline serves any
// number of concurrent requests.
type Pipeline struct {
	catalog   *schema.Catalog
	store     *policy.Store
	validator *sqlguard.Validator
	runner    QueryRunner
	auditor   Auditor
	gen       generator.Generator
	logger    *zap.Logger
}

// New wires a pipeline. gen may be nil when only ProcessCandidate is used.
func New(catalog *schema.Catalog, store *policy.Store, runner QueryRunner, auditor Auditor, gen generator.Generator, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		catalog:   catalog,
		store:     store,
		validator: sqlguard.NewValidator(catalog, store, auditor),
		runner:    runner,
		auditor:   auditor,
		gen:       gen,
		logger:    logger.Named("pipeline"),
	}
}

// denialMessages maps denial reasons to stable user-facing text.
var denialMessages = map[sqlguard.DenyReason]string{
	sqlguard.DenyForbiddenQueryType: "Forbidden query type. Only SELECT queries are allowed.",
	sqlguard.DenyInjectionSuspected: "Potential SQL injection detected.",
	sqlguard.DenyUnauthorizedTable:  "Unauthorized access to table.",
	sqlguard.DenyUnauthorizedColumn: "Unauthorized access to column.",
}

// ProcessCandidate authorizes, rewrites, audits, and executes one
// candidate statement for the given identity.
func (p *Pipeline) ProcessCandidate(ctx context.Context, sql string, identity models.Identity) models.PipelineResult {
	sql = sqlguard.Normalize(sql)

	// The subject id is caller-supplied and about to be templated into a
	// predicate; screen it before anything else can interpolate it.
	if fingerprint, flagged := sqlguard.ScreenValue(identity.SubjectID); flagged {
		p.auditor.LogSecurityViolation(ctx, identity, sql, string(sqlguard.DenyInjectionSuspected),
			"subject_id fingerprint "+fingerprint)
		return denied(sqlguard.DenyInjectionSuspected)
	}

	verdict := p.validator.Authorize(ctx, sql, identity)
	if !verdict.IsAuthorized() {
		p.logger.Warn("Candidate statement denied",
			zap.String("reason", string(verdict.Reason())),
			zap.String("detail", verdict.Detail()),
			zap.String("role", identity.Role),
			zap.String("statement", logging.SanitizeQuery(sql)))
		return denied(verdict.Reason())
	}

	secured := sqlguard.ApplyRowFilter(sql, identity, p.store)

	// Best effort: a failure to record sensitive access is itself logged
	// but never aborts the request.
	p.auditSensitiveAccess(ctx, secured, identity)

	result, err := p.runner.Execute(ctx, secured)
	if err != nil {
		p.auditor.LogExecutionFailure(ctx, identity, secured, err)
		return models.PipelineResult{
			Status:  models.StatusFailed,
			SQL:     secured,
			Reason:  "ExecutionFailure",
			Message: "Query execution failed.",
		}
	}

	p.auditor.LogQueryExecution(ctx, identity, secured, result.RowCount, result.Elapsed)

	return models.PipelineResult{
		Status: models.StatusOK,
		SQL:    secured,
		Result: result,
	}
}

// Ask runs the full flow from a natural language question: the generator
// sees only the role-filtered schema, and whatever it returns is processed
// as an untrusted candidate. Clarifications and refusals bypass the
// authorization pipeline and pass through as structured results.
func (p *Pipeline) Ask(ctx context.Context, question string, identity models.Identity) models.PipelineResult {
	grants := p.store.GrantsForRole(identity.Role)
	filtered := p.catalog.FilterForRole(grants)

	var rowFilter string
	if f, ok := p.store.RowFilterForRole(identity.Role); ok {
		rowFilter = f.Predicate(identity.SubjectLiteral())
	}

	outcome, err := p.gen.Generate(ctx, generator.PromptContext{
		Question:  question,
		Schema:    filtered,
		RowFilter: rowFilter,
		Identity:  identity,
	})
	if err != nil {
		p.logger.Error("Generation failed", zap.Error(err))
		return models.PipelineResult{
			Status:   models.StatusFailed,
			Question: question,
			Reason:   "GenerationFailure",
			Message:  "Could not generate a query for this question.",
		}
	}

	switch outcome.Kind {
	case generator.OutcomeClarification:
		return models.PipelineResult{
			Status:   models.StatusClarification,
			Question: question,
			Message:  outcome.Message,
		}
	case generator.OutcomeRefusal:
		return models.PipelineResult{
			Status:   models.StatusRefused,
			Question: question,
			Message:  outcome.Message,
		}
	}

	result := p.ProcessCandidate(ctx, outcome.SQL, identity)
	result.Question = question
	return result
}

// auditSensitiveAccess records which audited columns the final statement
// touches, if any.
func (p *Pipeline) auditSensitiveAccess(ctx context.Context, sql string, identity models.Identity) {
	refs := sqlguard.Extract(sql, p.catalog)

	var accessed []string
	for ref := range refs.Columns {
		if ref.Table != "" {
			if p.store.SensitiveColumns(ref.Table).Contains(ref.Column) {
				accessed = append(accessed, ref.String())
			}
			continue
		}
		// Unqualified columns are attributed to whichever referenced
		// table marks them sensitive.
		for table := range refs.Tables {
			if p.store.SensitiveColumns(table).Contains(ref.Column) {
				accessed = append(accessed, table+"."+ref.Column)
			}
		}
	}

	if len(accessed) > 0 {
		p.auditor.LogSensitiveAccess(ctx, identity, sql, accessed)
	}
}

func denied(reason sqlguard.DenyReason) models.PipelineResult {
	return models.PipelineResult{
		Status:  models.StatusDenied,
		Reason:  string(reason),
		Message: denialMessages[reason],
	}
}
