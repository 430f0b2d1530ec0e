package calc

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is one parsed expression. The set of implementations is closed.
type Node interface {
	Pos() int
	String() string
	node()
}

type NumberLiteral struct {
	Value  float64
	Offset int
}

func (n *NumberLiteral) node()          {}
func (n *NumberLiteral) Pos() int       { return n.Offset }
func (n *NumberLiteral) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }

type StringLiteral struct {
	Value  string
	Offset int
}

func (s *StringLiteral) node()          {}
func (s *StringLiteral) Pos() int       { return s.Offset }
func (s *StringLiteral) String() string { return strconv.Quote(s.Value) }

type VariableRef struct {
	Name   string
	Offset int
}

func (v *VariableRef) node()          {}
func (v *VariableRef) Pos() int       { return v.Offset }
func (v *VariableRef) String() string { return v.Name }

type UnaryOp struct {
	Operator string
	Operand  Node
	Offset   int
}

func (u *UnaryOp) node()          {}
func (u *UnaryOp) Pos() int       { return u.Offset }
func (u *UnaryOp) String() string { return fmt.Sprintf("(%s%s)", u.Operator, u.Operand) }

// BinaryOp also represents assignment, with Operator "=" and a VariableRef
// on the left.
type BinaryOp struct {
	Operator string
	Left     Node
	Right    Node
	Offset   int
}

func (b *BinaryOp) node()    {}
func (b *BinaryOp) Pos() int { return b.Offset }
func (b *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Operator, b.Right)
}

type Call struct {
	Name   string
	Args   []Node
	Offset int
}

func (c *Call) node()    {}
func (c *Call) Pos() int { return c.Offset }
func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(args, " "))
}

type FunctionDef struct {
	Name   string
	Params []string
	Body   []Node
	Offset int
}

func (f *FunctionDef) node()    {}
func (f *FunctionDef) Pos() int { return f.Offset }
func (f *FunctionDef) String() string {
	body := make([]string, len(f.Body))
	for i, stmt := range f.Body {
		body[i] = stmt.String() + ";"
	}
	return fmt.Sprintf("fun %s(%s) { %s }", f.Name, strings.Join(f.Params, " "), strings.Join(body, " "))
}
