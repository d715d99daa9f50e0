package models

import "time"

// ResultStatus tags the outcome of a pipeline run.
type ResultStatus string

const (
	StatusOK            ResultStatus = "ok"
	StatusDenied        ResultStatus = "denied"
	StatusFailed        ResultStatus = "failed"
	StatusClarification ResultStatus = "clarification"
	StatusRefused       ResultStatus = "refused"
)

// ColumnInfo describes one column of a result set.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExecutionResult holds the rows returned by a successfully executed query.
type ExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Elapsed  time.Duration    `json:"-"`
}

// ElapsedMillis reports the execution time in milliseconds for API responses.
func (r *ExecutionResult) ElapsedMillis() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}

// PipelineResult is the single structured response exposed to callers.
// Exactly one of the detail fields is meaningful for a given Status.
type PipelineResult struct {
	Status   ResultStatus     `json:"status"`
	SQL      string           `json:"sql,omitempty"`
	Result   *ExecutionResult `json:"result,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	Message  string           `json:"message,omitempty"`
	Question string           `json:"question,omitempty"`
}
