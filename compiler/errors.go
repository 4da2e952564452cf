package compiler

import (
	"errors"
	"fmt"

	"github.com/chazu/tickle/pkg/parser"
)

// ErrTooDeep is returned when scripts nest deeper than the configured limit.
var ErrTooDeep = errors.New("compiler: nesting too deep")

// Error is a compile failure located in the source being compiled.
type Error struct {
	Kind   parser.ErrorKind
	Offset int
	Line   int
	Column int
	Msg    string
	// Incomplete is set when more input could make the source valid.
	Incomplete bool
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// sourceError converts a tokenizer failure into an *Error positioned in src.
func sourceError(src string, err error) *Error {
	var pe *parser.ParseError
	if !errors.As(err, &pe) {
		return &Error{Msg: err.Error(), Err: err, Line: 1, Column: 1}
	}
	line, col := parser.Position(src, pe.Offset)
	msg := pe.Kind.String()
	if pe.Msg != "" {
		msg += ": " + pe.Msg
	}
	return &Error{
		Kind:       pe.Kind,
		Offset:     pe.Offset,
		Line:       line,
		Column:     col,
		Msg:        msg,
		Incomplete: pe.Incomplete,
		Err:        err,
	}
}

// exprErrorMessage renders the runtime message raised by an expression that
// failed to parse at compile time.
func exprErrorMessage(expr string, err error) string {
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		detail := pe.Msg
		if detail == "" {
			detail = pe.Kind.String()
		}
		return fmt.Sprintf("syntax error in expression %q: %s", expr, detail)
	}
	return fmt.Sprintf("syntax error in expression %q: %v", expr, err)
}
