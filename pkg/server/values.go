package server

import (
	"fmt"
	"math"

	"github.com/oarkflow/convert"
	"github.com/oarkflow/errors"

	"github.com/oarkflow/calc"
)

// valueFromJSON converts a decoded JSON value into a calc value. Strings
// stay strings and anything numeric becomes a Number.
func valueFromJSON(raw any) (calc.Value, error) {
	switch v := raw.(type) {
	case string:
		return &calc.String{Value: v}, nil
	case bool, nil:
		return nil, fmt.Errorf("unsupported value %v", raw)
	}
	if n, ok := convert.ToFloat64(raw); ok {
		return &calc.Number{Value: n}, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", raw)
}

// valueToJSON describes a result. Non-finite numbers have no JSON form, so
// only Display carries them.
func valueToJSON(r calc.Result) ValueJSON {
	out := ValueJSON{Index: r.Index, Kind: r.Value.Kind().String(), Display: r.Value.String()}
	switch v := calc.Unwrap(r.Value).(type) {
	case *calc.Number:
		if !math.IsNaN(v.Value) && !math.IsInf(v.Value, 0) {
			out.Value = v.Value
		}
	case *calc.String:
		out.Value = v.Value
	case *calc.Function:
		out.Value = v.Signature()
	}
	return out
}

func errorToJSON(err error, source string) *ErrorJSON {
	offset, ok := calc.Offset(err)
	if !ok {
		return nil
	}
	line, col := calc.Position(source, offset)
	out := &ErrorJSON{Offset: offset, Line: line, Column: col}
	var lexErr *calc.LexError
	var parseErr *calc.ParseError
	var evalErr *calc.EvalError
	switch {
	case errors.As(err, &lexErr):
		out.Kind, out.Message = "lex", lexErr.Msg
	case errors.As(err, &parseErr):
		out.Kind, out.Message = "parse", parseErr.Msg
	case errors.As(err, &evalErr):
		out.Message = evalErr.Msg
		switch {
		case errors.Is(err, calc.ErrUnboundVariable):
			out.Kind = "unbound_variable"
		case errors.Is(err, calc.ErrTypeMismatch):
			out.Kind = "type_mismatch"
		default:
			out.Kind = "invalid_operation"
		}
	}
	return out
}
