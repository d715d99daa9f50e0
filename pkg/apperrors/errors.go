package apperrors

import "errors"

var (
	ErrSchemaUnavailable = errors.New("schema unavailable")
	ErrExecutionFailure  = errors.New("query execution failed")
	ErrGeneratorFailure  = errors.New("sql generation failed")
)
