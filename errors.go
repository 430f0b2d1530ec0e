package calc

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched with errors.Is. Every LexError, ParseError and EvalError
// unwraps to exactly one of them.
var (
	ErrLex              = errors.New("lex error")
	ErrParse            = errors.New("parse error")
	ErrUnboundVariable  = errors.New("unbound variable")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrInvalidOperation = errors.New("invalid operation")
)

// LexError reports a problem found while scanning source text.
type LexError struct {
	Offset int
	Msg    string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Offset, e.Msg)
}

func (e *LexError) Unwrap() error { return ErrLex }

// ParseError carries the offending token and the tokens that were still
// unconsumed when parsing stopped.
type ParseError struct {
	Token     Token
	Remaining []Token
	Msg       string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Token.Offset, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// EvalError is a runtime failure. Kind is one of ErrUnboundVariable,
// ErrTypeMismatch or ErrInvalidOperation.
type EvalError struct {
	Kind   error
	Offset int
	Msg    string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("eval error at offset %d: %s", e.Offset, e.Msg)
}

func (e *EvalError) Unwrap() error { return e.Kind }

func newEvalError(kind error, offset int, format string, args ...any) *EvalError {
	return &EvalError{Kind: kind, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// Offset extracts the source offset from any calc error. ok is false for
// errors that did not originate in the pipeline.
func Offset(err error) (int, bool) {
	var lexErr *LexError
	var parseErr *ParseError
	var evalErr *EvalError
	switch {
	case errors.As(err, &lexErr):
		return lexErr.Offset, true
	case errors.As(err, &parseErr):
		return parseErr.Token.Offset, true
	case errors.As(err, &evalErr):
		return evalErr.Offset, true
	default:
		return 0, false
	}
}

// Position converts a byte offset into a 1-based line and column.
func Position(src string, offset int) (line, col int) {
	if offset > len(src) {
		offset = len(src)
	}
	if offset < 0 {
		offset = 0
	}
	line = 1 + strings.Count(src[:offset], "\n")
	lineStart := strings.LastIndexByte(src[:offset], '\n') + 1
	col = len([]rune(src[lineStart:offset])) + 1
	return line, col
}

// WrapErrorWithSource renders calc errors as a snippet of src with a caret
// under the offending column:
//
//	PARSE ERROR at 1:7: expected ')' to close '(' at offset 0, got end of input
//
//	  1 | (1 + 2
//	    |       ^
//
// Other errors are returned unchanged.
func WrapErrorWithSource(err error, src string) error {
	return WrapErrorWithName(err, "", src)
}

// WrapErrorWithName is WrapErrorWithSource with a source name in the header.
func WrapErrorWithName(err error, name, src string) error {
	var header, msg string
	var lexErr *LexError
	var parseErr *ParseError
	var evalErr *EvalError
	switch {
	case errors.As(err, &lexErr):
		header, msg = "LEXICAL ERROR", lexErr.Msg
	case errors.As(err, &parseErr):
		header, msg = "PARSE ERROR", parseErr.Msg
	case errors.As(err, &evalErr):
		header, msg = "RUNTIME ERROR", evalErr.Msg
	default:
		return err
	}
	offset, _ := Offset(err)
	line, col := Position(src, offset)
	return &snippetError{cause: err, text: renderSnippet(src, header, name, line, col, msg)}
}

type snippetError struct {
	cause error
	text  string
}

func (e *snippetError) Error() string { return e.text }
func (e *snippetError) Unwrap() error { return e.cause }

func renderSnippet(src, header, name string, line, col int, msg string) string {
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n", header, line, col, msg)
	}
	lines := strings.Split(src, "\n")
	if line > len(lines) {
		return strings.TrimRight(b.String(), "\n")
	}
	b.WriteByte('\n')
	width := len(fmt.Sprint(min(line+1, len(lines))))
	if line > 1 {
		fmt.Fprintf(&b, "  %*d | %s\n", width, line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "  %*d | %s\n", width, line, lines[line-1])
	fmt.Fprintf(&b, "  %*s | %s^", width, "", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "\n  %*d | %s", width, line+1, lines[line])
	}
	return b.String()
}
