package schema

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyName       = errors.New("empty signal name")
	ErrDuplicateSignal = errors.New("duplicated signal")
	ErrInvalidDatatype = errors.New("invalid datatype")
	ErrInvalidLength   = errors.New("invalid length")
	ErrInvalidPlot     = errors.New("invalid plot directive")
	ErrUnknownSignal   = errors.New("unknown signal")
	ErrInvalidRepeat   = errors.New("non positive repeat count")
	ErrHeatmapShape    = errors.New("heatmap shape does not match repeat count")
	ErrEmptyTemplate   = errors.New("empty packet template")
)

// Error is returned when a schema or a packet template is not valid.
// It wraps one of the sentinel errors of the package.
type Error struct {
	// Signal is the offending signal, empty when the error
	// is not bound to a single signal.
	Signal string
	Err    error
	Detail string
}

func newError(signal string, err error) *Error {
	return &Error{Signal: signal, Err: err}
}

func newErrorf(signal string, err error, format string, args ...any) *Error {
	return &Error{Signal: signal, Err: err, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := "schema: "
	if e.Signal != "" {
		msg += fmt.Sprintf("signal %q: ", e.Signal)
	}

	msg += e.Err.Error()

	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewTemplateError returns an [Error] for a problem found while expanding a template.
func NewTemplateError(signal string, err error, format string, args ...any) *Error {
	if format == "" {
		return newError(signal, err)
	}
	return newErrorf(signal, err, format, args...)
}
