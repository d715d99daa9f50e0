// Package audit provides security audit logging for SIEM consumption.
// Events are logged in structured JSON on a dedicated logger namespace.
// Logging is fire-and-forget: it must never block or fail the
// authorization and execution path it observes.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/queryshield/queryshield-engine/pkg/models"
)

// EventType categorizes security-relevant events for filtering and alerting.
type EventType string

const (
	// EventSecurityViolation is logged for every authorization denial.
	EventSecurityViolation EventType = "security_violation"
	// EventSensitiveAccess is logged when a query touches audited columns.
	EventSensitiveAccess EventType = "sensitive_column_access"
	// EventQueryExecution is logged for executed queries (high volume).
	EventQueryExecution EventType = "query_execution"
	// EventExecutionFailure is logged when the database rejects a statement.
	EventExecutionFailure EventType = "execution_failure"
)

// Event is one auditable record with the context a SIEM needs.
type Event struct {
	Timestamp time.Time       `json:"timestamp"`
	EventType EventType       `json:"event_type"`
	RequestID uuid.UUID       `json:"request_id,omitempty"`
	Identity  models.Identity `json:"identity"`
	Statement string          `json:"statement"`
	Reason    string          `json:"reason,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Severity  string          `json:"severity"` // info, warning, critical
	ElapsedMS float64         `json:"elapsed_ms,omitempty"`
}

type requestIDKey struct{}

// WithRequestID stores a request id in the context so every audit event of
// one request can be correlated.
func WithRequestID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(requestIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// SecurityAuditor logs security events on the "security_audit" namespace.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates an auditor with a dedicated logger namespace
// for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogSecurityViolation records an authorization denial. Logged at WARN
// with "critical" severity so denials surface in monitoring even before
// the caller shapes a response.
func (a *SecurityAuditor) LogSecurityViolation(ctx context.Context, identity models.Identity, sql string, reason string, detail string) {
	event := Event{
		Timestamp: time.Now().UTC(),
		EventType: EventSecurityViolation,
		RequestID: requestIDFromContext(ctx),
		Identity:  identity,
		Statement: sql,
		Reason:    reason,
		Detail:    detail,
		Severity:  "critical",
	}

	a.logger.Warn("Unauthorized query attempt",
		append(a.eventFields(event),
			zap.String("reason", reason),
			zap.String("detail", detail))...)
}

// LogSensitiveAccess records that a query read audited columns. Best
// effort: callers invoke it after authorization and ignore any trouble.
func (a *SecurityAuditor) LogSensitiveAccess(ctx context.Context, identity models.Identity, sql string, columns []string) {
	event := Event{
		Timestamp: time.Now().UTC(),
		EventType: EventSensitiveAccess,
		RequestID: requestIDFromContext(ctx),
		Identity:  identity,
		Statement: sql,
		Severity:  "warning",
	}

	a.logger.Info("Sensitive column access",
		append(a.eventFields(event), zap.Strings("columns", columns))...)
}

// LogQueryExecution records a successfully executed statement with its
// elapsed time.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, identity models.Identity, sql string, rowCount int, elapsed time.Duration) {
	event := Event{
		Timestamp: time.Now().UTC(),
		EventType: EventQueryExecution,
		RequestID: requestIDFromContext(ctx),
		Identity:  identity,
		Statement: sql,
		Severity:  "info",
		ElapsedMS: float64(elapsed) / float64(time.Millisecond),
	}

	a.logger.Info("Query executed",
		append(a.eventFields(event),
			zap.Int("row_count", rowCount),
			zap.Duration("elapsed", elapsed))...)
}

// LogExecutionFailure records a statement the database rejected. This is a
// non-security error class but still lands in the audit trail with the
// offending statement.
func (a *SecurityAuditor) LogExecutionFailure(ctx context.Context, identity models.Identity, sql string, execErr error) {
	event := Event{
		Timestamp: time.Now().UTC(),
		EventType: EventExecutionFailure,
		RequestID: requestIDFromContext(ctx),
		Identity:  identity,
		Statement: sql,
		Reason:    "ExecutionFailure",
		Severity:  "warning",
	}

	a.logger.Error("Query execution failed",
		append(a.eventFields(event), zap.Error(execErr))...)
}

// eventFields serializes the full event to JSON alongside the flat fields.
// Marshaling known types should never fail; the error is ignored so audit
// logging cannot abort the request path.
func (a *SecurityAuditor) eventFields(event Event) []zap.Field {
	eventJSON, _ := json.Marshal(event)
	return []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("role", event.Identity.Role),
		zap.String("subject_id", event.Identity.SubjectID),
		zap.String("statement", event.Statement),
	}
}
