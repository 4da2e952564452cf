package parser

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a tokenizer failure.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrMissingBrace
	ErrMissingQuote
	ErrMissingBracket
	ErrMissingParen
	ErrMissingVarBrace
	ErrExtraAfterBrace
	ErrExtraAfterQuote
	ErrBadEscape
	ErrExprSyntax
	ErrNestingTooDeep
)

var errorKindMessages = map[ErrorKind]string{
	ErrNone:            "no error",
	ErrMissingBrace:    "missing close-brace",
	ErrMissingQuote:    "missing \"",
	ErrMissingBracket:  "missing close-bracket",
	ErrMissingParen:    "missing )",
	ErrMissingVarBrace: "missing close-brace for variable name",
	ErrExtraAfterBrace: "extra characters after close-brace",
	ErrExtraAfterQuote: "extra characters after close-quote",
	ErrBadEscape:       "invalid backslash escape",
	ErrExprSyntax:      "syntax error in expression",
	ErrNestingTooDeep:  "nesting too deep",
}

func (k ErrorKind) String() string {
	if msg, ok := errorKindMessages[k]; ok {
		return msg
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ParseError describes where and why tokenizing stopped.
type ParseError struct {
	Kind   ErrorKind
	Offset int // location of the offending construct
	// Incomplete is set when the input simply ran out: more text could make
	// it valid.
	Incomplete bool
	Msg        string // detail, mostly for expression errors
}

func (e *ParseError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Msg)
	}
	return fmt.Sprintf("%s at offset %d", e.Kind, e.Offset)
}

// IsIncomplete reports whether err is a parse error caused by running out of
// input.
func IsIncomplete(err error) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Incomplete
	}
	return false
}

// Position converts a byte offset into 1-based line and column numbers.
func Position(src string, offset int) (line, col int) {
	line, col = 1, 1
	if offset > len(src) {
		offset = len(src)
	}
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
