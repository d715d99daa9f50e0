package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/queryshield/queryshield-engine/pkg/generator"
	"github.com/queryshield/queryshield-engine/pkg/models"
	"github.com/queryshield/queryshield-engine/pkg/policy"
	"github.com/queryshield/queryshield-engine/pkg/schema"
)

type fakeRunner struct {
	result   *models.ExecutionResult
	err      error
	executed []string
}

func (f *fakeRunner) Execute(_ context.Context, sql string) (*models.ExecutionResult, error) {
	f.executed = append(f.executed, sql)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &models.ExecutionResult{RowCount: 0, Rows: []map[string]any{}}, nil
}

type auditRecord struct {
	kind    string
	sql     string
	reason  string
	detail  string
	columns []string
}

type recordingAuditor struct {
	records []auditRecord
}

func (r *recordingAuditor) LogSecurityViolation(_ context.Context, _ models.Identity, sql, reason, detail string) {
	r.records = append(r.records, auditRecord{kind: "violation", sql: sql, reason: reason, detail: detail})
}

func (r *recordingAuditor) LogSensitiveAccess(_ context.Context, _ models.Identity, sql string, columns []string) {
	r.records = append(r.records, auditRecord{kind: "sensitive", sql: sql, columns: columns})
}

func (r *recordingAuditor) LogQueryExecution(_ context.Context, _ models.Identity, sql string, _ int, _ time.Duration) {
	r.records = append(r.records, auditRecord{kind: "execution", sql: sql})
}

func (r *recordingAuditor) LogExecutionFailure(_ context.Context, _ models.Identity, sql string, _ error) {
	r.records = append(r.records, auditRecord{kind: "failure", sql: sql})
}

func (r *recordingAuditor) ofKind(kind string) []auditRecord {
	var out []auditRecord
	for _, rec := range r.records {
		if rec.kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

func testCatalog() *schema.Catalog {
	return schema.New(map[string][]string{
		"customers": {"id", "name", "email", "region"},
		"orders":    {"id", "customer_id", "total", "status"},
		"employees": {"id", "name", "salary"},
	}, []schema.ForeignKey{
		{ChildTable: "orders", ChildColumn: "customer_id", ParentTable: "customers", ParentColumn: "id"},
	})
}

func testStore(t *testing.T) *policy.Store {
	t.Helper()
	store, err := policy.NewStore(
		map[string]map[string][]string{
			"analyst": {
				"orders":    {"id", "customer_id", "total", "status"},
				"customers": {"id", "name", "region"},
			},
			"support": {
				"orders":    {"id", "customer_id", "status"},
				"customers": {"id", "name", "email"},
			},
		},
		map[string]string{"support": "orders.customer_id = {user_id}"},
		map[string][]string{"customers": {"email"}},
		[]string{`union\s+select`},
	)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func newTestPipeline(t *testing.T, runner *fakeRunner, auditor *recordingAuditor, gen generator.Generator) *Pipeline {
	t.Helper()
	return New(testCatalog(), testStore(t), runner, auditor, gen, nil)
}

func analyst() models.Identity {
	return models.Identity{Role: "analyst", SubjectID: "7"}
}

func support() models.Identity {
	return models.Identity{Role: "support", SubjectID: "42"}
}

func TestProcessCandidate_AuthorizedAndExecuted(t *testing.T) {
	runner := &fakeRunner{result: &models.ExecutionResult{RowCount: 2}}
	auditor := &recordingAuditor{}
	p := newTestPipeline(t, runner, auditor, nil)

	result := p.ProcessCandidate(context.Background(), "SELECT id, total FROM orders;", analyst())

	if result.Status != models.StatusOK {
		t.Fatalf("status = %s (%s)", result.Status, result.Message)
	}
	if result.SQL != "SELECT id, total FROM orders" {
		t.Errorf("sql = %q, trailing semicolon should be normalized away", result.SQL)
	}
	if len(runner.executed) != 1 {
		t.Fatalf("executed = %v", runner.executed)
	}
	if len(auditor.ofKind("execution")) != 1 {
		t.Error("execution not audited")
	}
}

func TestProcessCandidate_DenialNeverReachesRunner(t *testing.T) {
	runner := &fakeRunner{}
	auditor := &recordingAuditor{}
	p := newTestPipeline(t, runner, auditor, nil)

	tests := []struct {
		name   string
		sql    string
		reason string
	}{
		{"non select", "DELETE FROM orders", "ForbiddenQueryType"},
		{"stacked statements", "SELECT name FROM customers; DROP TABLE customers;", "InjectionSuspected"},
		{"injection pattern", "SELECT id FROM orders UNION SELECT salary FROM employees", "InjectionSuspected"},
		{"unauthorized table", "SELECT salary FROM employees", "UnauthorizedTable"},
		{"unauthorized column", "SELECT customers.email FROM customers", "UnauthorizedColumn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.ProcessCandidate(context.Background(), tt.sql, analyst())

			if result.Status != models.StatusDenied {
				t.Fatalf("status = %s, want denied", result.Status)
			}
			if result.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", result.Reason, tt.reason)
			}
			if result.Message == "" {
				t.Error("denial must carry a user-facing message")
			}
		})
	}

	if len(runner.executed) != 0 {
		t.Errorf("denied statements reached the runner: %v", runner.executed)
	}
	if len(auditor.ofKind("violation")) != len(tests) {
		t.Errorf("violations audited = %d, want %d", len(auditor.ofKind("violation")), len(tests))
	}
}

func TestProcessCandidate_RowFilterAppliedBeforeExecution(t *testing.T) {
	runner := &fakeRunner{}
	auditor := &recordingAuditor{}
	p := newTestPipeline(t, runner, auditor, nil)

	result := p.ProcessCandidate(context.Background(), "SELECT id FROM orders", support())

	want := "SELECT id FROM orders WHERE orders.customer_id = 42"
	if result.SQL != want {
		t.Errorf("sql = %q, want %q", result.SQL, want)
	}
	if len(runner.executed) != 1 || runner.executed[0] != want {
		t.Errorf("executed = %v, want filtered statement", runner.executed)
	}
}

func TestProcessCandidate_MaliciousSubjectIDDenied(t *testing.T) {
	runner := &fakeRunner{}
	auditor := &recordingAuditor{}
	p := newTestPipeline(t, runner, auditor, nil)

	identity := models.Identity{Role: "support", SubjectID: "1' OR '1'='1"}
	result := p.ProcessCandidate(context.Background(), "SELECT id FROM orders", identity)

	if result.Status != models.StatusDenied {
		t.Fatalf("status = %s, want denied", result.Status)
	}
	if result.Reason != "InjectionSuspected" {
		t.Errorf("reason = %q", result.Reason)
	}
	if len(runner.executed) != 0 {
		t.Error("statement with malicious subject id reached the runner")
	}
}

func TestProcessCandidate_SensitiveAccessAudited(t *testing.T) {
	runner := &fakeRunner{}
	auditor := &recordingAuditor{}
	p := newTestPipeline(t, runner, auditor, nil)

	// support may read customers.email, which is marked sensitive.
	p.ProcessCandidate(context.Background(), "SELECT customers.email FROM customers", support())

	sensitive := auditor.ofKind("sensitive")
	if len(sensitive) != 1 {
		t.Fatalf("sensitive records = %d, want 1", len(sensitive))
	}
	if len(sensitive[0].columns) != 1 || sensitive[0].columns[0] != "customers.email" {
		t.Errorf("columns = %v, want [customers.email]", sensitive[0].columns)
	}
}

func TestProcessCandidate_UnqualifiedSensitiveColumnAttributed(t *testing.T) {
	runner := &fakeRunner{}
	auditor := &recordingAuditor{}
	p := newTestPipeline(t, runner, auditor, nil)

	p.ProcessCandidate(context.Background(), "SELECT email FROM customers", support())

	sensitive := auditor.ofKind("sensitive")
	if len(sensitive) != 1 {
		t.Fatalf("sensitive records = %d, want 1", len(sensitive))
	}
	if sensitive[0].columns[0] != "customers.email" {
		t.Errorf("columns = %v", sensitive[0].columns)
	}
}

func TestProcessCandidate_ExecutionFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("relation does not exist")}
	auditor := &recordingAuditor{}
	p := newTestPipeline(t, runner, auditor, nil)

	result := p.ProcessCandidate(context.Background(), "SELECT id FROM orders", analyst())

	if result.Status != models.StatusFailed {
		t.Fatalf("status = %s, want failed", result.Status)
	}
	if result.Reason != "ExecutionFailure" {
		t.Errorf("reason = %q", result.Reason)
	}
	if len(runner.executed) != 1 {
		t.Errorf("executed = %d times, failed statements must not be retried", len(runner.executed))
	}
	if len(auditor.ofKind("failure")) != 1 {
		t.Error("failure not audited")
	}
}

func TestAsk_GeneratorSeesOnlyFilteredSchema(t *testing.T) {
	gen := &generator.MockGenerator{Outcome: generator.Outcome{
		Kind: generator.OutcomeSQL,
		SQL:  "SELECT id FROM orders",
	}}
	p := newTestPipeline(t, &fakeRunner{}, &recordingAuditor{}, gen)

	p.Ask(context.Background(), "show my orders", analyst())

	seen := gen.LastContext.Schema
	if seen.HasTable("employees") {
		t.Error("generator saw an ungranted table")
	}
	if seen.HasColumn("customers", "email") {
		t.Error("generator saw an ungranted column")
	}
	if !seen.HasColumn("orders", "total") {
		t.Error("generator missing a granted column")
	}
}

func TestAsk_RowFilterRenderedIntoPromptContext(t *testing.T) {
	gen := &generator.MockGenerator{Outcome: generator.Outcome{
		Kind: generator.OutcomeSQL,
		SQL:  "SELECT id FROM orders",
	}}
	p := newTestPipeline(t, &fakeRunner{}, &recordingAuditor{}, gen)

	p.Ask(context.Background(), "show my orders", support())

	if gen.LastContext.RowFilter != "orders.customer_id = 42" {
		t.Errorf("row filter = %q", gen.LastContext.RowFilter)
	}
}

func TestAsk_ClarificationPassesThrough(t *testing.T) {
	gen := &generator.MockGenerator{Outcome: generator.Outcome{
		Kind:    generator.OutcomeClarification,
		Message: "Which region?",
	}}
	runner := &fakeRunner{}
	p := newTestPipeline(t, runner, &recordingAuditor{}, gen)

	result := p.Ask(context.Background(), "sales by region", analyst())

	if result.Status != models.StatusClarification {
		t.Fatalf("status = %s", result.Status)
	}
	if result.Message != "Which region?" {
		t.Errorf("message = %q", result.Message)
	}
	if len(runner.executed) != 0 {
		t.Error("clarification must not execute anything")
	}
}

func TestAsk_RefusalPassesThrough(t *testing.T) {
	gen := &generator.MockGenerator{Outcome: generator.Outcome{
		Kind:    generator.OutcomeRefusal,
		Message: "You do not have permission to access this data.",
	}}
	p := newTestPipeline(t, &fakeRunner{}, &recordingAuditor{}, gen)

	result := p.Ask(context.Background(), "show me salaries", analyst())

	if result.Status != models.StatusRefused {
		t.Fatalf("status = %s", result.Status)
	}
}

func TestAsk_GeneratedSQLStillValidated(t *testing.T) {
	// A generator gone rogue returns SQL outside the role's grants. The
	// pipeline must deny it like any other candidate.
	gen := &generator.MockGenerator{Outcome: generator.Outcome{
		Kind: generator.OutcomeSQL,
		SQL:  "SELECT salary FROM employees",
	}}
	runner := &fakeRunner{}
	p := newTestPipeline(t, runner, &recordingAuditor{}, gen)

	result := p.Ask(context.Background(), "show everyone's salary", analyst())

	if result.Status != models.StatusDenied {
		t.Fatalf("status = %s, want denied", result.Status)
	}
	if len(runner.executed) != 0 {
		t.Error("unauthorized generated SQL reached the runner")
	}
}

func TestAsk_GeneratorErrorFails(t *testing.T) {
	gen := &generator.MockGenerator{Err: errors.New("provider unavailable")}
	p := newTestPipeline(t, &fakeRunner{}, &recordingAuditor{}, gen)

	result := p.Ask(context.Background(), "show my orders", analyst())

	if result.Status != models.StatusFailed {
		t.Fatalf("status = %s", result.Status)
	}
	if result.Reason != "GenerationFailure" {
		t.Errorf("reason = %q", result.Reason)
	}
}

func TestAsk_QuestionEchoedInResult(t *testing.T) {
	gen := &generator.MockGenerator{Outcome: generator.Outcome{
		Kind: generator.OutcomeSQL,
		SQL:  "SELECT id FROM orders",
	}}
	p := newTestPipeline(t, &fakeRunner{}, &recordingAuditor{}, gen)

	result := p.Ask(context.Background(), "show my orders", analyst())

	if result.Question != "show my orders" {
		t.Errorf("question = %q", result.Question)
	}
}
