package calc

import (
	"fmt"
	"strconv"
)

type TokenKind int

const (
	IDENT TokenKind = iota
	NUMBER
	OPERATOR
	DELIMITER
	LPAREN
	RPAREN
	START_BLOCK
	END_BLOCK
	STRING
	EOF
	UNKNOWN
)

func (k TokenKind) String() string {
	switch k {
	case IDENT:
		return "IDENT"
	case NUMBER:
		return "NUMBER"
	case OPERATOR:
		return "OPERATOR"
	case DELIMITER:
		return "DELIMITER"
	case LPAREN:
		return "LPAREN"
	case RPAREN:
		return "RPAREN"
	case START_BLOCK:
		return "START_BLOCK"
	case END_BLOCK:
		return "END_BLOCK"
	case STRING:
		return "STRING"
	case EOF:
		return "EOF"
	case UNKNOWN:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}

// Keywords are lexed as identifiers and picked out by the parser.
const (
	keywordLet = "let"
	keywordFun = "fun"
)

// Token is one lexical unit. Number is only meaningful for NUMBER tokens;
// Literal holds the identifier, operator symbol or decoded string text.
type Token struct {
	Kind    TokenKind
	Literal string
	Number  float64
	Offset  int
}

func (t Token) String() string {
	switch t.Kind {
	case NUMBER:
		return fmt.Sprintf("Token(%s, %s, Offset: %d)", t.Kind, strconv.FormatFloat(t.Number, 'g', -1, 64), t.Offset)
	case EOF:
		return fmt.Sprintf("Token(%s, Offset: %d)", t.Kind, t.Offset)
	default:
		return fmt.Sprintf("Token(%s, %q, Offset: %d)", t.Kind, t.Literal, t.Offset)
	}
}

// Is reports whether t is of the given kind with the given literal.
func (t Token) Is(kind TokenKind, literal string) bool {
	return t.Kind == kind && t.Literal == literal
}

func describeToken(t Token) string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case NUMBER:
		return "number " + strconv.FormatFloat(t.Number, 'g', -1, 64)
	case STRING:
		return fmt.Sprintf("string %q", t.Literal)
	case IDENT:
		return fmt.Sprintf("identifier '%s'", t.Literal)
	default:
		return fmt.Sprintf("'%s'", t.Literal)
	}
}
