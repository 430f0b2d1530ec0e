package calc

import (
	"math"
)

// Arithmetic capabilities. Each operation switches over every Value variant
// so a new variant has to be handled here explicitly. ok is false when the
// operation is not defined for the operands; there is no coercion between
// variants.

func add(l, r Value) (Value, bool) {
	switch l := l.(type) {
	case *Number:
		if r, isNum := r.(*Number); isNum {
			return &Number{Value: l.Value + r.Value}, true
		}
		return nil, false
	case *String, *Binding, *Function:
		return nil, false
	default:
		return nil, false
	}
}

func negate(v Value) (Value, bool) {
	switch v := v.(type) {
	case *Number:
		return &Number{Value: -v.Value}, true
	case *String, *Binding, *Function:
		return nil, false
	default:
		return nil, false
	}
}

func positive(v Value) (Value, bool) {
	switch v := v.(type) {
	case *Number:
		return v, true
	case *String, *Binding, *Function:
		return nil, false
	default:
		return nil, false
	}
}

// subtract is addition of the negated right operand.
func subtract(l, r Value) (Value, bool) {
	if _, isNum := l.(*Number); !isNum {
		return nil, false
	}
	neg, ok := negate(r)
	if !ok {
		return nil, false
	}
	return add(l, neg)
}

func multiply(l, r Value) (Value, bool) {
	switch l := l.(type) {
	case *Number:
		if r, isNum := r.(*Number); isNum {
			return &Number{Value: l.Value * r.Value}, true
		}
		return nil, false
	case *String, *Binding, *Function:
		return nil, false
	default:
		return nil, false
	}
}

// divide follows IEEE 754: x/0 is a signed infinity and 0/0 is NaN.
func divide(l, r Value) (Value, bool) {
	switch l := l.(type) {
	case *Number:
		if r, isNum := r.(*Number); isNum {
			return &Number{Value: l.Value / r.Value}, true
		}
		return nil, false
	case *String, *Binding, *Function:
		return nil, false
	default:
		return nil, false
	}
}

// modulo is the floating-point remainder with the sign of the dividend.
func modulo(l, r Value) (Value, bool) {
	switch l := l.(type) {
	case *Number:
		if r, isNum := r.(*Number); isNum {
			return &Number{Value: math.Mod(l.Value, r.Value)}, true
		}
		return nil, false
	case *String, *Binding, *Function:
		return nil, false
	default:
		return nil, false
	}
}

func power(l, r Value) (Value, bool) {
	switch l := l.(type) {
	case *Number:
		if r, isNum := r.(*Number); isNum {
			return &Number{Value: math.Pow(l.Value, r.Value)}, true
		}
		return nil, false
	case *String, *Binding, *Function:
		return nil, false
	default:
		return nil, false
	}
}

// binaryOp resolves an arithmetic operator. known is false for symbols that
// have no arithmetic meaning.
func binaryOp(op string) (fn func(l, r Value) (Value, bool), known bool) {
	switch op {
	case "+":
		return add, true
	case "-":
		return subtract, true
	case "*":
		return multiply, true
	case "/":
		return divide, true
	case "%":
		return modulo, true
	case "**":
		return power, true
	default:
		return nil, false
	}
}

func unaryOp(op string) (fn func(v Value) (Value, bool), known bool) {
	switch op {
	case "-":
		return negate, true
	case "+":
		return positive, true
	default:
		return nil, false
	}
}
