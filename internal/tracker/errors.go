package tracker

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidBox начальная рамка без площади, вне кадра или больше кадра
	ErrInvalidBox = errors.New("tracker: initial box must have positive size and fit the frame")
	// ErrEmptyFrame кадр без пикселей
	ErrEmptyFrame = errors.New("tracker: empty frame")
)

// ConfigError недопустимые константы
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tracker config: %s %s", e.Field, e.Reason)
}

// InferenceError сбой эмбеддера или головы, либо тензор неверной формы.
// Состояние трекера при этой ошибке не меняется.
type InferenceError struct {
	Op  string // embed_template, embed_search, infer, decode
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("tracker %s: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// StateError вызов track до успешного init
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return "tracker state: " + e.Reason
}

func inferenceErr(op string, err error) error {
	return &InferenceError{Op: op, Err: err}
}

func shapeErr(format string, args ...interface{}) error {
	return &InferenceError{Op: "decode", Err: errors.Errorf(format, args...)}
}
