package calc

import (
	"math"
	"strconv"
	"strings"
)

type ValueKind int

const (
	NUMBER_VALUE ValueKind = iota
	STRING_VALUE
	BINDING_VALUE
	FUNCTION_VALUE
)

func (k ValueKind) String() string {
	switch k {
	case NUMBER_VALUE:
		return "Number"
	case STRING_VALUE:
		return "String"
	case BINDING_VALUE:
		return "Binding"
	case FUNCTION_VALUE:
		return "Function"
	default:
		return "Unknown"
	}
}

// Value is the runtime result of evaluating a Node. The set of
// implementations is closed; every operation switches over all of them.
type Value interface {
	Kind() ValueKind
	String() string
	value()
}

type Number struct {
	Value float64
}

func (n *Number) Kind() ValueKind { return NUMBER_VALUE }
func (n *Number) String() string  { return FormatNumber(n.Value) }
func (n *Number) value()          {}

type String struct {
	Value string
}

func (s *String) Kind() ValueKind { return STRING_VALUE }
func (s *String) String() string  { return s.Value }
func (s *String) value()          {}

// Binding is the result of an assignment. Value is what Name was bound to
// at the moment the assignment committed.
type Binding struct {
	Name  string
	Value Value
}

func (b *Binding) Kind() ValueKind { return BINDING_VALUE }
func (b *Binding) String() string  { return b.Name + " = " + b.Value.String() }
func (b *Binding) value()          {}

// Function is a defined but not callable function. It captures no scope.
type Function struct {
	Name   string
	Params []string
	Body   []Node
}

func (f *Function) Kind() ValueKind { return FUNCTION_VALUE }
func (f *Function) String() string  { return "Function " + f.Name }
func (f *Function) value()          {}

// Signature renders the definition header, e.g. "fun add(a b)".
func (f *Function) Signature() string {
	return "fun " + f.Name + "(" + strings.Join(f.Params, " ") + ")"
}

// FormatNumber renders the shortest decimal that round-trips, with "inf",
// "-inf" and "NaN" for the non-finite values.
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// Unwrap returns the bound value for a Binding and v otherwise.
func Unwrap(v Value) Value {
	for {
		b, ok := v.(*Binding)
		if !ok {
			return v
		}
		v = b.Value
	}
}
