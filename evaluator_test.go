package calc

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

func evalOne(t *testing.T, src string, env *Environment) Value {
	t.Helper()
	results, err := Exec(src, env)
	if err != nil {
		t.Fatalf("Exec(%q) failed: %v", src, err)
	}
	if len(results) == 0 {
		t.Fatalf("Exec(%q) returned no results", src)
	}
	return results[len(results)-1].Value
}

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"2+3*4", 14},
		{"2**3**2", 512},
		{"(2**3)**2", 64},
		{"10 - 4 - 3", 3},
		{"7 % 3", 1},
		{"-7 % 3", -1},
		{"7.5 % 2", 1.5},
		{"1.5 * 2", 3},
		{"9 / 2", 4.5},
		{"-(2 + 3)", -5},
		{"+4", 4},
		{"2 ** -1", 0.5},
		{"pi", math.Pi},
	}
	for _, tt := range tests {
		val := evalOne(t, tt.input, NewGlobalEnvironment())
		num, ok := val.(*Number)
		if !ok {
			t.Fatalf("%q evaluated to %T, want *Number", tt.input, val)
		}
		if num.Value != tt.want {
			t.Errorf("%q = %v, want %v", tt.input, num.Value, tt.want)
		}
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	env := NewGlobalEnvironment()
	if v := evalOne(t, "5/0", env).(*Number).Value; !math.IsInf(v, 1) {
		t.Errorf("5/0 = %v, want +Inf", v)
	}
	if v := evalOne(t, "-5/0", env).(*Number).Value; !math.IsInf(v, -1) {
		t.Errorf("-5/0 = %v, want -Inf", v)
	}
	if v := evalOne(t, "0/0", env).(*Number).Value; !math.IsNaN(v) {
		t.Errorf("0/0 = %v, want NaN", v)
	}
	if v := evalOne(t, "5 % 0", env).(*Number).Value; !math.IsNaN(v) {
		t.Errorf("5 %% 0 = %v, want NaN", v)
	}
}

func TestRunOutput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"let x = 5; x + 1", "0: x = 5\n1: 6\n"},
		{"1/0; -1/0; 0/0", "0: inf\n1: -inf\n2: NaN\n"},
		{"0.1 + 0.2", "0: 0.30000000000000004\n"},
		{`"hi\tthere"`, "0: hi\tthere\n"},
		{"fun add(a b) { a + b }", "0: Function add\n"},
		{"x = 1; x = x + 1", "0: x = 1\n1: x = 2\n"},
	}
	for _, tt := range tests {
		nodes, err := ParseString(tt.input)
		if err != nil {
			t.Fatalf("parse %q failed: %v", tt.input, err)
		}
		var out bytes.Buffer
		if err := Run(nodes, NewGlobalEnvironment(), &out); err != nil {
			t.Fatalf("Run(%q) failed: %v", tt.input, err)
		}
		if out.String() != tt.want {
			t.Errorf("Run(%q) printed %q, want %q", tt.input, out.String(), tt.want)
		}
	}
}

func TestRunStopsAtFirstError(t *testing.T) {
	nodes, err := ParseString("1; y; 2")
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	err = Run(nodes, NewGlobalEnvironment(), &out)
	if !errors.Is(err, ErrUnboundVariable) {
		t.Fatalf("Run error = %v, want ErrUnboundVariable", err)
	}
	if out.String() != "0: 1\n" {
		t.Errorf("output %q, want only the first line", out.String())
	}
}

func TestAssignmentPersistsInEnvironment(t *testing.T) {
	env := NewGlobalEnvironment()
	if _, err := Exec("let x = 5; x + 1", env); err != nil {
		t.Fatal(err)
	}
	val := evalOne(t, "x", env)
	if n, ok := val.(*Number); !ok || n.Value != 5 {
		t.Errorf("x = %v, want 5", val)
	}
}

func TestAssignmentEvaluatesAgainstCopy(t *testing.T) {
	env := NewGlobalEnvironment()
	val := evalOne(t, "x = (y = 3)", env)
	if got := val.String(); got != "x = y = 3" {
		t.Errorf("binding renders %q, want %q", got, "x = y = 3")
	}
	if _, ok := env.Get("y"); ok {
		t.Errorf("nested assignment leaked into the live environment")
	}

	_, err := Exec("z = z", env)
	if !errors.Is(err, ErrUnboundVariable) {
		t.Fatalf("self reference error = %v, want ErrUnboundVariable", err)
	}
	if _, ok := env.Get("z"); ok {
		t.Errorf("failed assignment committed a binding")
	}
}

func TestEvaluationOrderIsLeftToRight(t *testing.T) {
	env := NewGlobalEnvironment()
	_, err := Exec("a + (a = 1)", env)
	if !errors.Is(err, ErrUnboundVariable) {
		t.Fatalf("got %v, want unbound a since the left side runs first", err)
	}
	if _, ok := env.Get("a"); ok {
		t.Fatalf("right operand ran after the left one failed")
	}

	_, err = Exec("(a = 1) + a", env)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("got %v, want type mismatch between Binding and Number", err)
	}
	if v, ok := env.Get("a"); !ok || v.(*Number).Value != 1 {
		t.Errorf("left assignment was not committed before the right operand")
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		input   string
		kind    error
		message string
	}{
		{"nope", ErrUnboundVariable, "unbound variable 'nope'"},
		{`1 + "a"`, ErrTypeMismatch, "unsupported operand types for +: Number and String"},
		{`"a" - 1`, ErrTypeMismatch, "for -: String and Number"},
		{`"a" * "b"`, ErrTypeMismatch, "for *: String and String"},
		{`-"a"`, ErrTypeMismatch, "unary -: String"},
		{`2 ** "x"`, ErrTypeMismatch, "for **"},
		{"f(1)", ErrInvalidOperation, "function calls are not supported"},
		{"(fun f() { 1 }) + 1", ErrTypeMismatch, "Function and Number"},
	}
	for _, tt := range tests {
		_, err := Exec(tt.input, NewGlobalEnvironment())
		if err == nil {
			t.Fatalf("Exec(%q) succeeded, want error", tt.input)
		}
		var evalErr *EvalError
		if !errors.As(err, &evalErr) {
			t.Fatalf("Exec(%q) error %T, want *EvalError", tt.input, err)
		}
		if !errors.Is(err, tt.kind) {
			t.Errorf("Exec(%q) error %v, want kind %v", tt.input, err, tt.kind)
		}
		if !strings.Contains(evalErr.Msg, tt.message) {
			t.Errorf("Exec(%q) message %q, want it to contain %q", tt.input, evalErr.Msg, tt.message)
		}
	}
}

func TestFunctionDefinitionDoesNotBindName(t *testing.T) {
	env := NewGlobalEnvironment()
	val := evalOne(t, "fun sq(x) { x * x }", env)
	fn, ok := val.(*Function)
	if !ok {
		t.Fatalf("got %T, want *Function", val)
	}
	if fn.Signature() != "fun sq(x)" || len(fn.Body) != 1 {
		t.Errorf("unexpected function %s with %d statements", fn.Signature(), len(fn.Body))
	}
	if _, ok := env.Get("sq"); ok {
		t.Errorf("function definition bound its name")
	}
}

func TestEvalNilNode(t *testing.T) {
	if _, err := Eval(nil, NewEnvironment()); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("Eval(nil) = %v, want ErrInvalidOperation", err)
	}
}

func TestEnvironmentClone(t *testing.T) {
	env := NewGlobalEnvironment()
	env.Set("a", &Number{Value: 1})
	c := env.Clone()
	c.Set("b", &Number{Value: 2})
	if _, ok := env.Get("b"); ok {
		t.Errorf("clone writes reached the original")
	}
	if got := strings.Join(c.Names(), ","); got != "a,b,pi" {
		t.Errorf("names = %s, want a,b,pi", got)
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok || c.Len() != 2 || env.Len() != 2 {
		t.Errorf("delete: clone has %d names, original %d", c.Len(), env.Len())
	}
}
