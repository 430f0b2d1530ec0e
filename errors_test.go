package calc

import (
	"errors"
	"strings"
	"testing"
)

func TestPosition(t *testing.T) {
	tests := []struct {
		src       string
		offset    int
		line, col int
	}{
		{"abc", 0, 1, 1},
		{"abc", 3, 1, 4},
		{"ab\ncd", 4, 2, 2},
		{"é\nx", 3, 2, 1},
		{"x", 99, 1, 2},
	}
	for _, tt := range tests {
		line, col := Position(tt.src, tt.offset)
		if line != tt.line || col != tt.col {
			t.Errorf("Position(%q, %d) = %d:%d, want %d:%d", tt.src, tt.offset, line, col, tt.line, tt.col)
		}
	}
}

func TestWrapErrorWithSource(t *testing.T) {
	src := "1 +\n(2"
	_, err := ParseString(src)
	wrapped := WrapErrorWithSource(err, src)
	msg := wrapped.Error()
	if !strings.HasPrefix(msg, "PARSE ERROR at 2:3: expected ')'") {
		t.Errorf("unexpected header: %q", msg)
	}
	if !strings.Contains(msg, "2 | (2\n") || !strings.HasSuffix(msg, "|   ^") {
		t.Errorf("snippet missing source line or caret:\n%s", msg)
	}
	if !errors.Is(wrapped, ErrParse) {
		t.Errorf("wrapped error lost its cause")
	}
}

func TestWrapErrorWithNameRuntime(t *testing.T) {
	src := "let a = 1;\nb + a"
	_, err := Exec(src, NewGlobalEnvironment())
	msg := WrapErrorWithName(err, "demo.calc", src).Error()
	if !strings.HasPrefix(msg, "RUNTIME ERROR in demo.calc at 2:1: unbound variable 'b'") {
		t.Errorf("unexpected header: %q", msg)
	}
}

func TestWrapErrorLeavesOtherErrors(t *testing.T) {
	plain := errors.New("disk on fire")
	if got := WrapErrorWithSource(plain, "1"); got != plain {
		t.Errorf("got %v, want the original error", got)
	}
	if _, ok := Offset(plain); ok {
		t.Errorf("Offset reported a position for a foreign error")
	}
}
