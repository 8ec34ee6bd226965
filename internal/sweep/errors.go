package sweep

import (
	"errors"
	"fmt"

	"github.com/haasonsaas/ragsweep/internal/retry"
)

// ErrInvalidSweepSpec is returned, wrapped in *InvalidSpecError, when a spec
// cannot be expanded. No work starts.
var ErrInvalidSweepSpec = errors.New("invalid sweep spec")

// InvalidSpecError names the offending field.
type InvalidSpecError struct {
	Field  string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidSweepSpec, e.Field, e.Reason)
}

func (e *InvalidSpecError) Is(target error) bool {
	return target == ErrInvalidSweepSpec
}

func invalidSpec(field, format string, args ...any) error {
	return &InvalidSpecError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PreprocessingError is a failed build, shared by every config of the group.
type PreprocessingError struct {
	Group GroupKey
	Err   error
}

func (e *PreprocessingError) Error() string {
	return fmt.Sprintf("preprocessing %s: %v", e.Group, e.Err)
}

func (e *PreprocessingError) Unwrap() error { return e.Err }

// EvaluationError is a failed evaluation of one config.
type EvaluationError struct {
	Config   Config
	Attempts int
	Err      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation %d (%s) after %d attempt(s): %v", e.Config.Index, e.Config, e.Attempts, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// ValidationError rejects a config or group before any work. It is never
// retried.
type ValidationError struct {
	Subject string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Subject, e.Err)
}

// Unwrap exposes the cause marked permanent so retry loops stop on it.
func (e *ValidationError) Unwrap() error { return retry.Permanent(e.Err) }

// Stage names where a config failed.
type Stage string

const (
	StageValidation    Stage = "validation"
	StagePreprocessing Stage = "preprocessing"
	StageEvaluation    Stage = "evaluation"
)

// Failure marks a result that did not complete.
type Failure struct {
	Stage     Stage  `json:"stage"`
	Message   string `json:"message"`
	Attempts  int    `json:"attempts,omitempty"`
	Retriable bool   `json:"retriable"`
}

// failureOf classifies err into a Failure.
func failureOf(err error) *Failure {
	f := &Failure{Message: err.Error(), Retriable: retry.IsRetryable(err)}

	var ve *ValidationError
	var pe *PreprocessingError
	var ee *EvaluationError
	switch {
	case errors.As(err, &ve):
		f.Stage = StageValidation
		f.Retriable = false
	case errors.As(err, &pe):
		f.Stage = StagePreprocessing
		f.Message = pe.Err.Error()
	case errors.As(err, &ee):
		f.Stage = StageEvaluation
		f.Attempts = ee.Attempts
		f.Message = ee.Err.Error()
	default:
		f.Stage = StageEvaluation
	}
	return f
}
