package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/queryshield/queryshield-engine/pkg/apperrors"
	"github.com/queryshield/queryshield-engine/pkg/testhelpers"
)

func TestExecute(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	e := New(db.Pool, 10*time.Second, 1000, nil)

	result, err := e.Execute(context.Background(), "SELECT id, name FROM customers ORDER BY id")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.RowCount != 3 {
		t.Errorf("row count = %d, want 3", result.RowCount)
	}
	if len(result.Columns) != 2 || result.Columns[0].Name != "id" || result.Columns[1].Name != "name" {
		t.Errorf("columns = %+v", result.Columns)
	}
	if result.Columns[0].Type != "INT8" {
		t.Errorf("id type = %s, want INT8", result.Columns[0].Type)
	}
	if result.Rows[0]["name"] != "Ada Brant" {
		t.Errorf("first row = %v", result.Rows[0])
	}
	if result.Elapsed <= 0 {
		t.Error("elapsed not recorded")
	}
}

func TestExecute_RowCap(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	e := New(db.Pool, 10*time.Second, 2, nil)

	result, err := e.Execute(context.Background(), "SELECT id FROM orders ORDER BY id")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.RowCount != 2 {
		t.Errorf("row count = %d, want capped at 2", result.RowCount)
	}
}

func TestExecute_FailureWrapped(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	e := New(db.Pool, 10*time.Second, 1000, nil)

	_, err := e.Execute(context.Background(), "SELECT nope FROM not_a_table")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, apperrors.ErrExecutionFailure) {
		t.Errorf("error %v not wrapped as ErrExecutionFailure", err)
	}
}

func TestExecute_Timeout(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	e := New(db.Pool, 100*time.Millisecond, 1000, nil)

	_, err := e.Execute(context.Background(), "SELECT pg_sleep(5)")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, apperrors.ErrExecutionFailure) {
		t.Errorf("timeout not surfaced as ErrExecutionFailure: %v", err)
	}
}
