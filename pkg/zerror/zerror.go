// Package zerror defines coded errors shared by every layer. A ZError
// carries a stable machine code, a human message and a Status that the
// transport maps onto its own vocabulary.
package zerror

import (
	"errors"
	"fmt"
)

type ZError struct {
	status Status
	code   string
	msg    string
	parent error
}

// New returns a ZError. Codes are upper snake case, e.g. PRODUCT_NOT_FOUND.
func New(status Status, code, msg string) ZError {
	return ZError{status: status, code: code, msg: msg}
}

func NewNotFound(code, msg string) ZError {
	return New(StatusNotFound, code, msg)
}

func NewValidationFailed(code, msg string) ZError {
	return New(StatusValidationFailed, code, msg)
}

func NewConflict(code, msg string) ZError {
	return New(StatusConflict, code, msg)
}

func NewUnprocessableEntity(code, msg string) ZError {
	return New(StatusUnprocessableEntity, code, msg)
}

func NewInternal(code, msg string) ZError {
	return New(StatusInternal, code, msg)
}

func (e ZError) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.parent)
	}
	return e.code + ": " + e.msg
}

// WithMsg returns a copy carrying a more specific message.
func (e ZError) WithMsg(format string, args ...any) ZError {
	e.msg = fmt.Sprintf(format, args...)
	return e
}

// WrapParent returns a copy wrapping parent. A nil parent is ignored.
func (e ZError) WrapParent(parent error) ZError {
	if parent != nil {
		e.parent = parent
	}
	return e
}

func (e ZError) Unwrap() error { return e.parent }

// Is matches any ZError with the same code, so a sentinel still matches
// after WithMsg or WrapParent.
func (e ZError) Is(target error) bool {
	var t ZError
	if !errors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

func (e ZError) Status() Status { return e.status }
func (e ZError) Code() string   { return e.code }
func (e ZError) Msg() string    { return e.msg }

// IsCode reports whether the first ZError in err's chain carries code.
func IsCode(err error, code string) bool {
	var zErr ZError
	if !errors.As(err, &zErr) {
		return false
	}
	return zErr.code == code
}
