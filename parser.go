package calc

import (
	"fmt"
)

const maxNestingDepth = 512

// Parser walks a read-only token slice with a cursor. It never recovers:
// the first malformed statement aborts the parse.
type Parser struct {
	tokens []Token
	pos    int
	table  PrecedenceTable
	depth  int
}

type ParserOption func(*Parser)

// WithPrecedence replaces the default operator table.
func WithPrecedence(table PrecedenceTable) ParserOption {
	return func(p *Parser) {
		p.table = table
	}
}

func NewParser(tokens []Token, opts ...ParserOption) *Parser {
	p := &Parser{tokens: tokens, table: DefaultPrecedence()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses tokens as a top-level statement block.
func Parse(tokens []Token) ([]Node, error) {
	return NewParser(tokens).ParseProgram()
}

// ParseString tokenizes and parses src.
func ParseString(src string) ([]Node, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

func (p *Parser) ParseProgram() ([]Node, error) {
	return p.parseBlock(false)
}

func (p *Parser) cur() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	offset := 0
	if n := len(p.tokens); n > 0 {
		offset = p.tokens[n-1].Offset
	}
	return Token{Kind: EOF, Offset: offset}
}

func (p *Parser) nextToken() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *Parser) remaining() []Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	rest := make([]Token, len(p.tokens)-p.pos)
	copy(rest, p.tokens[p.pos:])
	return rest
}

func (p *Parser) errorf(tok Token, format string, args ...any) error {
	return &ParseError{Token: tok, Remaining: p.remaining(), Msg: fmt.Sprintf(format, args...)}
}

// expect consumes the current token when it has the given kind.
func (p *Parser) expect(kind TokenKind, context string) (Token, error) {
	tok := p.cur()
	if tok.Kind != kind {
		return tok, p.errorf(tok, "expected %s, got %s", context, describeToken(tok))
	}
	p.nextToken()
	return tok, nil
}

// parseBlock collects statements until end of input or, when nested, the
// closing '}' which is left for the caller to consume.
func (p *Parser) parseBlock(nested bool) ([]Node, error) {
	var nodes []Node
	for {
		tok := p.cur()
		switch tok.Kind {
		case EOF:
			if nested {
				return nil, p.errorf(tok, "expected '}' to close block, got end of input")
			}
			return nodes, nil
		case END_BLOCK:
			if nested {
				return nodes, nil
			}
			return nil, p.errorf(tok, "unmatched '}'")
		case DELIMITER:
			p.nextToken()
		default:
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, expr)
		}
	}
}

func (p *Parser) parseExpression() (Node, error) {
	lhs, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parseBinOpRHS(0, lhs)
}

// parseBinOpRHS folds operators binding at least minPrec into lhs. The right
// operand is extended first when the following operator binds tighter, or
// equally tight and right-associative.
func (p *Parser) parseBinOpRHS(minPrec int, lhs Node) (Node, error) {
	for {
		opTok := p.cur()
		info, ok := p.binaryOperator(opTok)
		if !ok || info.Precedence < minPrec {
			return lhs, nil
		}
		p.nextToken()

		rhs, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		for {
			next, ok := p.binaryOperator(p.cur())
			if !ok {
				break
			}
			var nextMin int
			switch {
			case next.Precedence > info.Precedence:
				nextMin = info.Precedence + 1
			case next.Precedence == info.Precedence && next.Associativity == RightAssoc:
				nextMin = info.Precedence
			default:
				nextMin = -1
			}
			if nextMin < 0 {
				break
			}
			rhs, err = p.parseBinOpRHS(nextMin, rhs)
			if err != nil {
				return nil, err
			}
		}

		lhs, err = p.makeBinary(opTok, lhs, rhs)
		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) binaryOperator(tok Token) (OperatorInfo, bool) {
	if tok.Kind != OPERATOR {
		return OperatorInfo{}, false
	}
	return p.table.Lookup(tok.Literal)
}

func (p *Parser) makeBinary(opTok Token, lhs, rhs Node) (Node, error) {
	if opTok.Literal == "=" {
		if _, ok := lhs.(*VariableRef); !ok {
			return nil, p.errorf(opTok, "invalid assignment target %s", lhs)
		}
	}
	return &BinaryOp{Operator: opTok.Literal, Left: lhs, Right: rhs, Offset: lhs.Pos()}, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	tok := p.cur()
	if p.depth > maxNestingDepth {
		return nil, p.errorf(tok, "expression nested too deeply")
	}

	switch tok.Kind {
	case NUMBER:
		p.nextToken()
		return &NumberLiteral{Value: tok.Number, Offset: tok.Offset}, nil
	case STRING:
		p.nextToken()
		return &StringLiteral{Value: tok.Literal, Offset: tok.Offset}, nil
	case LPAREN:
		return p.parseParen()
	case OPERATOR:
		return p.parseUnary()
	case IDENT:
		switch tok.Literal {
		case keywordLet:
			return p.parseLet()
		case keywordFun:
			return p.parseFunction()
		}
		p.nextToken()
		if p.cur().Kind == LPAREN {
			return p.parseCall(tok)
		}
		return &VariableRef{Name: tok.Literal, Offset: tok.Offset}, nil
	case UNKNOWN:
		return nil, &LexError{Offset: tok.Offset, Msg: fmt.Sprintf("unknown character '%s'", tok.Literal)}
	default:
		return nil, p.errorf(tok, "unexpected %s", describeToken(tok))
	}
}

func (p *Parser) parseParen() (Node, error) {
	open := p.cur()
	p.nextToken()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.cur(); tok.Kind != RPAREN {
		return nil, p.errorf(tok, "expected ')' to close '(' at offset %d, got %s", open.Offset, describeToken(tok))
	}
	p.nextToken()
	return expr, nil
}

func (p *Parser) parseUnary() (Node, error) {
	opTok := p.cur()
	if opTok.Literal != "+" && opTok.Literal != "-" {
		return nil, p.errorf(opTok, "unexpected operator '%s'", opTok.Literal)
	}
	p.nextToken()
	operand, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return &UnaryOp{Operator: opTok.Literal, Operand: operand, Offset: opTok.Offset}, nil
}

func (p *Parser) parseLet() (Node, error) {
	letTok := p.cur()
	p.nextToken()
	name, err := p.expect(IDENT, "identifier after 'let'")
	if err != nil {
		return nil, err
	}
	if tok := p.cur(); !tok.Is(OPERATOR, "=") {
		return nil, p.errorf(tok, "expected '=' after 'let %s', got %s", name.Literal, describeToken(tok))
	}
	p.nextToken()
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &BinaryOp{
		Operator: "=",
		Left:     &VariableRef{Name: name.Literal, Offset: name.Offset},
		Right:    value,
		Offset:   letTok.Offset,
	}, nil
}

func (p *Parser) parseFunction() (Node, error) {
	funTok := p.cur()
	p.nextToken()
	name, err := p.expect(IDENT, "function name after 'fun'")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN, "'(' after function name"); err != nil {
		return nil, err
	}
	params := []string{}
	for p.cur().Kind == IDENT {
		params = append(params, p.cur().Literal)
		p.nextToken()
	}
	if _, err := p.expect(RPAREN, "')' to close parameter list"); err != nil {
		return nil, err
	}
	if _, err := p.expect(START_BLOCK, "'{' to start function body"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock(true)
	if err != nil {
		return nil, err
	}
	p.nextToken() // '}'
	return &FunctionDef{Name: name.Literal, Params: params, Body: body, Offset: funTok.Offset}, nil
}

// parseCall reads arguments as primaries only, so "f(1 + 2)" has the two
// arguments 1 and (+2).
func (p *Parser) parseCall(name Token) (Node, error) {
	p.nextToken() // '('
	args := []Node{}
	for {
		tok := p.cur()
		switch tok.Kind {
		case RPAREN:
			p.nextToken()
			return &Call{Name: name.Literal, Args: args, Offset: name.Offset}, nil
		case EOF:
			return nil, p.errorf(tok, "expected ')' to close call to %s, got end of input", name.Literal)
		}
		arg, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
}
