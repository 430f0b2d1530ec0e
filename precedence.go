package calc

// Associativity of a binary operator.
type Associativity int

const (
	LeftAssoc Associativity = iota
	RightAssoc
)

// OperatorInfo is the binding power of a binary operator. Higher binds
// tighter.
type OperatorInfo struct {
	Precedence    int
	Associativity Associativity
}

// PrecedenceTable maps binary operator symbols to their binding power. A
// table is immutable once built; the parser only reads it.
type PrecedenceTable struct {
	ops map[string]OperatorInfo
}

// NewPrecedenceTable copies ops into a new table.
func NewPrecedenceTable(ops map[string]OperatorInfo) PrecedenceTable {
	table := PrecedenceTable{ops: make(map[string]OperatorInfo, len(ops))}
	for op, info := range ops {
		table.ops[op] = info
	}
	return table
}

// DefaultPrecedence is the table used when a parser is built without
// WithPrecedence.
func DefaultPrecedence() PrecedenceTable {
	return NewPrecedenceTable(map[string]OperatorInfo{
		"=":  {Precedence: 1},
		"+":  {Precedence: 10},
		"-":  {Precedence: 10},
		"*":  {Precedence: 20},
		"/":  {Precedence: 20},
		"%":  {Precedence: 20},
		"**": {Precedence: 30, Associativity: RightAssoc},
	})
}

// Lookup returns the info for op; ok is false when op is not a binary
// operator.
func (t PrecedenceTable) Lookup(op string) (OperatorInfo, bool) {
	info, ok := t.ops[op]
	return info, ok
}

// Of returns the precedence of tok, or -1 when tok is not a binary operator.
func (t PrecedenceTable) Of(tok Token) int {
	if tok.Kind != OPERATOR {
		return -1
	}
	if info, ok := t.ops[tok.Literal]; ok {
		return info.Precedence
	}
	return -1
}
