package tablepb

import (
	"errors"
	"fmt"

	"github.com/tablepb/tablepb/internal/compiler"
	"github.com/tablepb/tablepb/internal/vm"
)

// ErrorCode is the closed error taxonomy of spec §7.
type ErrorCode int

const (
	Truncated ErrorCode = iota + 1
	Malformed
	LimitExceeded
	SinkShort
	SchemaViolation
)

func (c ErrorCode) String() string {
	switch c {
	case Truncated:
		return "truncated"
	case Malformed:
		return "malformed"
	case LimitExceeded:
		return "limit exceeded"
	case SinkShort:
		return "short write"
	case SchemaViolation:
		return "schema violation"
	default:
		return "unknown error"
	}
}

// Error is the structured value every public decode/encode/compile failure
// surfaces as.
type Error struct {
	Code   ErrorCode
	Offset int
	Reason string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tablepb: %v at offset %d: %s", e.Code, e.Offset, e.Reason)
	}
	return fmt.Sprintf("tablepb: %v at offset %d", e.Code, e.Offset)
}

// wrapError translates an internal (vm or compiler) error into the public
// Error type. It returns nil for a nil input, and passes unrecognized
// errors through unchanged (e.g. protobuf descriptor errors raised while
// resolving a schema).
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var ve *vm.Error
	if errors.As(err, &ve) {
		return &Error{Code: vmCodeToPublic(ve.Code), Offset: ve.Offset, Reason: ve.Reason}
	}

	var se *compiler.SchemaError
	if errors.As(err, &se) {
		return &Error{Code: SchemaViolation, Reason: se.Error()}
	}

	return err
}

func vmCodeToPublic(c vm.Code) ErrorCode {
	switch c {
	case vm.CodeTruncated:
		return Truncated
	case vm.CodeMalformed:
		return Malformed
	case vm.CodeLimitExceeded:
		return LimitExceeded
	case vm.CodeSinkShort:
		return SinkShort
	default:
		return Malformed
	}
}
