package calc

import (
	"fmt"
	"io"
)

// Eval evaluates node against env. Operands are evaluated strictly left to
// right since assignments mutate env.
func Eval(node Node, env *Environment) (Value, error) {
	switch node := node.(type) {
	case *NumberLiteral:
		return &Number{Value: node.Value}, nil

	case *StringLiteral:
		return &String{Value: node.Value}, nil

	case *VariableRef:
		if val, ok := env.Get(node.Name); ok {
			return val, nil
		}
		return nil, newEvalError(ErrUnboundVariable, node.Offset, "unbound variable '%s'", node.Name)

	case *UnaryOp:
		operand, err := Eval(node.Operand, env)
		if err != nil {
			return nil, err
		}
		return evalUnary(node, operand)

	case *BinaryOp:
		if node.Operator == "=" {
			return evalAssign(node, env)
		}
		left, err := Eval(node.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := Eval(node.Right, env)
		if err != nil {
			return nil, err
		}
		return evalBinary(node, left, right)

	case *FunctionDef:
		return &Function{Name: node.Name, Params: node.Params, Body: node.Body}, nil

	case *Call:
		// TODO: define call frames (scoping, positional binding, result of
		// the last body statement) before executing calls.
		return nil, newEvalError(ErrInvalidOperation, node.Offset, "function calls are not supported: %s", node.Name)

	case nil:
		return nil, newEvalError(ErrInvalidOperation, 0, "nil node")

	default:
		return nil, newEvalError(ErrInvalidOperation, node.Pos(), "no evaluation rule for %T", node)
	}
}

func evalUnary(node *UnaryOp, operand Value) (Value, error) {
	fn, known := unaryOp(node.Operator)
	if !known {
		return nil, newEvalError(ErrInvalidOperation, node.Offset, "unknown unary operator '%s'", node.Operator)
	}
	result, ok := fn(operand)
	if !ok {
		return nil, newEvalError(ErrTypeMismatch, node.Offset,
			"unsupported operand type for unary %s: %s", node.Operator, operand.Kind())
	}
	return result, nil
}

func evalBinary(node *BinaryOp, left, right Value) (Value, error) {
	fn, known := binaryOp(node.Operator)
	if !known {
		return nil, newEvalError(ErrInvalidOperation, node.Offset, "unknown operator '%s'", node.Operator)
	}
	result, ok := fn(left, right)
	if !ok {
		return nil, newEvalError(ErrTypeMismatch, node.Offset,
			"unsupported operand types for %s: %s and %s", node.Operator, left.Kind(), right.Kind())
	}
	return result, nil
}

// evalAssign evaluates the right-hand side against a copy of env, so the
// value never observes its own binding or any assignment nested inside it.
func evalAssign(node *BinaryOp, env *Environment) (Value, error) {
	target, ok := node.Left.(*VariableRef)
	if !ok {
		return nil, newEvalError(ErrInvalidOperation, node.Offset, "invalid assignment target %s", node.Left)
	}
	val, err := Eval(node.Right, env.Clone())
	if err != nil {
		return nil, err
	}
	env.Set(target.Name, val)
	return &Binding{Name: target.Name, Value: val}, nil
}

// Run evaluates nodes in order and writes "<index>: <value>" for each. It
// stops at the first error; lines already written stay written.
func Run(nodes []Node, env *Environment, out io.Writer) error {
	for i, node := range nodes {
		val, err := Eval(node, env)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%d: %s\n", i, val); err != nil {
			return err
		}
	}
	return nil
}

// Result is one evaluated top-level statement.
type Result struct {
	Index int
	Value Value
}

func (r Result) String() string {
	return fmt.Sprintf("%d: %s", r.Index, r.Value)
}

// EvalAll evaluates nodes like Run but returns the values instead of
// writing them. Results before the failing statement are returned with the
// error.
func EvalAll(nodes []Node, env *Environment) ([]Result, error) {
	results := make([]Result, 0, len(nodes))
	for i, node := range nodes {
		val, err := Eval(node, env)
		if err != nil {
			return results, err
		}
		results = append(results, Result{Index: i, Value: val})
	}
	return results, nil
}

// Exec tokenizes, parses and evaluates src against env.
func Exec(src string, env *Environment) ([]Result, error) {
	nodes, err := ParseString(src)
	if err != nil {
		return nil, err
	}
	return EvalAll(nodes, env)
}
