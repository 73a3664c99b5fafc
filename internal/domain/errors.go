package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrFrequencyAmbiguous  = errors.New("frequency ambiguous")
	ErrModelFit            = errors.New("model fit failed")
	ErrInvalidConfig       = errors.New("invalid config")
	ErrRunNotFound         = errors.New("run not found")
)

// InsufficientHistoryError reports how much history was available.
type InsufficientHistoryError struct {
	Need int
	Got  int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("not enough history: need ≥%d points, got %d", e.Need, e.Got)
}

func (e *InsufficientHistoryError) Is(target error) bool {
	return target == ErrInsufficientHistory
}

// ModelFitError wraps a failure of one model in the cascade.
type ModelFitError struct {
	Model ModelKind
	Err   error
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("fit %s: %v", e.Model, e.Err)
}

func (e *ModelFitError) Unwrap() error {
	return e.Err
}

func (e *ModelFitError) Is(target error) bool {
	return target == ErrModelFit
}

// NewModelFitError builds a ModelFitError from a message.
func NewModelFitError(model ModelKind, format string, args ...interface{}) error {
	return &ModelFitError{Model: model, Err: fmt.Errorf(format, args...)}
}
