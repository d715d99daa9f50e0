// Package executor runs validated statements against the target database.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/queryshield/queryshield-engine/pkg/apperrors"
	"github.com/queryshield/queryshield-engine/pkg/models"
)

// Executor runs read statements on a pooled connection. Each call acquires
// a scoped connection for the duration of its single query and releases it
// unconditionally, including on partial result consumption.
type Executor struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	maxRows int
	logger  *zap.Logger
}

// New creates an executor. timeout bounds each statement; reaching it fails
// the request, not the process. maxRows of 0 means unlimited.
func New(pool *pgxpool.Pool, timeout time.Duration, maxRows int, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{pool: pool, timeout: timeout, maxRows: maxRows, logger: logger.Named("executor")}
}

// Execute runs the statement and collects its rows. Driver-level failures
// are surfaced as ExecutionFailure and are never retried: a malformed or
// overly broad query is a caller-visible condition, not a transient fault.
// Cancelling ctx aborts the statement on the server.
func (e *Executor) Execute(ctx context.Context, sql string) (*models.ExecutionResult, error) {
	queryToRun := sql
	if e.maxRows > 0 {
		queryToRun = fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sql, e.maxRows)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()

	rows, err := e.pool.Query(ctx, queryToRun)
	if err != nil {
		return nil, e.failure(err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]models.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = models.ColumnInfo{
			Name: string(fd.Name),
			Type: typeNameFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, e.failure(err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, e.failure(err)
	}

	elapsed := time.Since(start)
	e.logger.Debug("Statement executed",
		zap.Int("row_count", len(resultRows)),
		zap.Duration("elapsed", elapsed))

	return &models.ExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Elapsed:  elapsed,
	}, nil
}

func (e *Executor) failure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: statement timed out: %w", apperrors.ErrExecutionFailure, err)
	}
	return fmt.Errorf("%w: %w", apperrors.ErrExecutionFailure, err)
}

// typeNameFromOID maps common PostgreSQL type OIDs to readable names.
// Unknown types return "UNKNOWN".
func typeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 20:
		return "INT8"
	case 21:
		return "INT2"
	case 23:
		return "INT4"
	case 25:
		return "TEXT"
	case 700:
		return "FLOAT4"
	case 701:
		return "FLOAT8"
	case 1042:
		return "BPCHAR"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1700:
		return "NUMERIC"
	case 2950:
		return "UUID"
	case 3802:
		return "JSONB"
	default:
		return "UNKNOWN"
	}
}
