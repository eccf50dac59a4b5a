package governance

import (
	"context"
	"errors"

	"extgov/core/guard"
	"extgov/core/registry"
	"extgov/core/simulator"
	"extgov/core/store"
	"extgov/core/stress"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	CodeNotFound           = "NotFound"
	CodeInvalidInput       = "InvalidInput"
	CodeAssessmentRequired = "AssessmentRequired"
	CodeBlocked            = "ActivationBlocked"
	CodePersistence        = "PersistenceError"
	CodeConflict           = "Conflict"
	CodeCanceled           = "Canceled"
	CodeInternal           = "Internal"
)

// DomainError tags an error with a stable code the transport layers map to
// their own status values.
type DomainError struct {
	Code string
	Err  error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *DomainError) Unwrap() error { return e.Err }

func AsDomainError(err error) (*DomainError, bool) {
	if err == nil {
		return nil, false
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// classify wraps err in a DomainError unless it already is one.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsDomainError(err); ok {
		return err
	}
	return &DomainError{Code: codeOf(err), Err: err}
}

func codeOf(err error) string {
	var pe *store.PersistenceError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, guard.ErrAssessmentRequired):
		return CodeAssessmentRequired
	case errors.Is(err, guard.ErrBlocked):
		return CodeBlocked
	case errors.Is(err, guard.ErrContention):
		return CodeConflict
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, registry.ErrInvalidInput),
		errors.Is(err, simulator.ErrEmptyPath),
		errors.Is(err, simulator.ErrUnknownProfile),
		errors.Is(err, stress.ErrInvalidMatrix):
		return CodeInvalidInput
	case errors.As(err, &pe):
		return CodePersistence
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeInternal
	}
}
