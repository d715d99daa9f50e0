package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/queryshield/queryshield-engine/pkg/models"
)

func observedAuditor() (*SecurityAuditor, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewSecurityAuditor(zap.New(core)), logs
}

func caller() models.Identity {
	return models.Identity{Role: "analyst", SubjectID: "7"}
}

func TestLogSecurityViolation(t *testing.T) {
	auditor, logs := observedAuditor()

	auditor.LogSecurityViolation(context.Background(), caller(),
		"SELECT salary FROM employees", "UnauthorizedTable", "employees")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Errorf("level = %s, want warn", entry.Level)
	}
	if entry.LoggerName != "security_audit" {
		t.Errorf("logger = %q, want security_audit", entry.LoggerName)
	}

	fields := entry.ContextMap()
	if fields["role"] != "analyst" {
		t.Errorf("role = %v", fields["role"])
	}
	if fields["reason"] != "UnauthorizedTable" {
		t.Errorf("reason = %v", fields["reason"])
	}
	if fields["detail"] != "employees" {
		t.Errorf("detail = %v", fields["detail"])
	}

	var event Event
	if err := json.Unmarshal([]byte(fields["event_json"].(string)), &event); err != nil {
		t.Fatalf("event_json not valid JSON: %v", err)
	}
	if event.EventType != EventSecurityViolation {
		t.Errorf("event_type = %s", event.EventType)
	}
	if event.Severity != "critical" {
		t.Errorf("severity = %s", event.Severity)
	}
	if event.Statement != "SELECT salary FROM employees" {
		t.Errorf("statement = %q", event.Statement)
	}
}

func TestLogSensitiveAccess(t *testing.T) {
	auditor, logs := observedAuditor()

	auditor.LogSensitiveAccess(context.Background(), caller(),
		"SELECT email FROM customers", []string{"customers.email"})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	fields := entries[0].ContextMap()
	cols, ok := fields["columns"].([]interface{})
	if !ok || len(cols) != 1 || cols[0] != "customers.email" {
		t.Errorf("columns = %v", fields["columns"])
	}
}

func TestLogQueryExecution(t *testing.T) {
	auditor, logs := observedAuditor()

	auditor.LogQueryExecution(context.Background(), caller(),
		"SELECT id FROM orders", 3, 15*time.Millisecond)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["row_count"] != int64(3) {
		t.Errorf("row_count = %v", fields["row_count"])
	}
}

func TestRequestIDCorrelation(t *testing.T) {
	auditor, logs := observedAuditor()

	id := uuid.New()
	ctx := WithRequestID(context.Background(), id)

	auditor.LogSecurityViolation(ctx, caller(), "DELETE FROM orders", "ForbiddenQueryType", "DELETE")

	var event Event
	fields := logs.All()[0].ContextMap()
	if err := json.Unmarshal([]byte(fields["event_json"].(string)), &event); err != nil {
		t.Fatalf("event_json: %v", err)
	}
	if event.RequestID != id {
		t.Errorf("request_id = %s, want %s", event.RequestID, id)
	}
}

func TestRequestIDMissingIsNil(t *testing.T) {
	if got := requestIDFromContext(context.Background()); got != uuid.Nil {
		t.Errorf("request id = %s, want nil uuid", got)
	}
}
