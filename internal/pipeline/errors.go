package pipeline

import "github.com/querypilot/querypilot/internal/sqlguard"

// ValidationError carries the guard's rejection reason as its message.
type ValidationError struct {
	SQL    string
	Reason sqlguard.Reason
}

func (e *ValidationError) Error() string {
	return string(e.Reason)
}

type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

type TranslationError struct {
	Err error
}

func (e *TranslationError) Error() string {
	return e.Err.Error()
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}
