package calc

import (
	"bytes"
	"testing"

	"github.com/oarkflow/expr"
)

func BenchmarkTokenize(b *testing.B) {
	src := "let rate = 0.05; let years = 10; 1000 * (1 + rate) ** years"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Tokenize(src); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Calc_Math_ParseAndEval(b *testing.B) {
	input := "1 + 2 * 3"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Exec(input, NewGlobalEnvironment()); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Expr_Math_ParseAndEval(b *testing.B) {
	input := "1 + 2 * 3"
	for i := 0; i < b.N; i++ {
		program, err := expr.Compile(input)
		if err != nil {
			b.Fatal(err)
		}
		expr.Run(program, nil)
	}
}

func Benchmark_Calc_Math_EvalOnly(b *testing.B) {
	nodes, err := ParseString("1 + 2 * 3")
	if err != nil {
		b.Fatal(err)
	}
	env := NewGlobalEnvironment()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EvalAll(nodes, env); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Expr_Math_EvalOnly(b *testing.B) {
	program, err := expr.Compile("1 + 2 * 3")
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		expr.Run(program, nil)
	}
}

func FuzzPipelineNoPanic(f *testing.F) {
	seeds := []string{
		"1+2",
		"2**3**2",
		"let x = 5; x + 1",
		`"a\n" ; "b\"c"`,
		"fun f(a b) { a * b; } f(1 2)",
		"((1)",
		"}{",
		"1.2.3",
		"x = (y = (z = 1))",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, src string) {
		nodes, err := ParseString(src)
		if err != nil {
			if _, ok := Offset(err); !ok {
				t.Fatalf("untyped error for %q: %v", src, err)
			}
			return
		}
		var out bytes.Buffer
		if err := Run(nodes, NewGlobalEnvironment(), &out); err != nil {
			if _, ok := Offset(err); !ok {
				t.Fatalf("untyped runtime error for %q: %v", src, err)
			}
		}
	})
}
