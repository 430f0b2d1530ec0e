package calc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type lexState int

const (
	stateStart lexState = iota
	stateNumberWhole
	stateNumberDecimal
	stateIdent
	stateString
	stateStringEscape
)

// Lexer is a single pass scanner with one character of look-ahead.
type Lexer struct {
	input   string
	pos     int
	start   int
	state   lexState
	current strings.Builder
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize scans the whole input. The result always ends in exactly one EOF
// token unless an error is returned.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) peek() (rune, int) {
	return utf8.DecodeRuneInString(l.input[l.pos:])
}

// NextToken returns the next token. Once the input is exhausted it keeps
// returning EOF.
func (l *Lexer) NextToken() (Token, error) {
	for l.pos < len(l.input) {
		ch, size := l.peek()
		switch l.state {
		case stateStart:
			switch {
			case isDigit(ch):
				l.state = stateNumberWhole
				l.consume(ch, size)
			case unicode.IsSpace(ch):
				l.pos += size
				l.start = l.pos
			case isOperatorChar(ch):
				return l.readOperator(), nil
			case ch == '(':
				return l.single(LPAREN, ch, size), nil
			case ch == ')':
				return l.single(RPAREN, ch, size), nil
			case ch == '{':
				return l.single(START_BLOCK, ch, size), nil
			case ch == '}':
				return l.single(END_BLOCK, ch, size), nil
			case ch == ';':
				return l.single(DELIMITER, ch, size), nil
			case isIdentStart(ch):
				l.state = stateIdent
				l.consume(ch, size)
			case ch == '"':
				l.pos += size
				l.state = stateString
			default:
				return l.single(UNKNOWN, ch, size), nil
			}
		case stateNumberWhole:
			switch {
			case isDigit(ch):
				l.consume(ch, size)
			case ch == '.':
				l.state = stateNumberDecimal
				l.consume(ch, size)
			default:
				return l.emitNumber()
			}
		case stateNumberDecimal:
			switch {
			case isDigit(ch):
				l.consume(ch, size)
			case ch == '.':
				return Token{}, l.errorf(l.start, "malformed number '%s.'", l.current.String())
			default:
				return l.emitNumber()
			}
		case stateIdent:
			if isIdentChar(ch) {
				l.consume(ch, size)
				continue
			}
			return l.emitText(IDENT), nil
		case stateString:
			switch ch {
			case '\\':
				l.pos += size
				l.state = stateStringEscape
			case '"':
				l.pos += size
				return l.emitText(STRING), nil
			default:
				l.consume(ch, size)
			}
		case stateStringEscape:
			decoded, ok := unescape(ch)
			if !ok {
				return Token{}, l.errorf(l.pos-1, "unknown escape sequence '\\%c'", ch)
			}
			l.pos += size
			l.current.WriteRune(decoded)
			l.state = stateString
		}
	}

	switch l.state {
	case stateNumberWhole, stateNumberDecimal:
		return l.emitNumber()
	case stateIdent:
		return l.emitText(IDENT), nil
	case stateString, stateStringEscape:
		return Token{}, l.errorf(l.start, "unterminated string literal")
	}
	return Token{Kind: EOF, Offset: len(l.input)}, nil
}

func (l *Lexer) consume(ch rune, size int) {
	l.current.WriteRune(ch)
	l.pos += size
}

func (l *Lexer) single(kind TokenKind, ch rune, size int) Token {
	tok := Token{Kind: kind, Literal: string(ch), Offset: l.start}
	l.pos += size
	l.start = l.pos
	return tok
}

// readOperator applies maximal munch so that "**" is one token.
func (l *Lexer) readOperator() Token {
	if strings.HasPrefix(l.input[l.pos:], "**") {
		tok := Token{Kind: OPERATOR, Literal: "**", Offset: l.start}
		l.pos += 2
		l.start = l.pos
		return tok
	}
	ch, size := l.peek()
	return l.single(OPERATOR, ch, size)
}

func (l *Lexer) emitText(kind TokenKind) Token {
	tok := Token{Kind: kind, Literal: l.current.String(), Offset: l.start}
	l.reset()
	return tok
}

func (l *Lexer) emitNumber() (Token, error) {
	text := l.current.String()
	// Out of range literals keep the ±Inf that ParseFloat returns.
	n, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return Token{}, l.errorf(l.start, "'%s' is not a valid number", text)
	}
	tok := Token{Kind: NUMBER, Literal: text, Number: n, Offset: l.start}
	l.reset()
	return tok, nil
}

func (l *Lexer) reset() {
	l.state = stateStart
	l.current.Reset()
	l.start = l.pos
}

func (l *Lexer) errorf(offset int, format string, args ...any) error {
	return &LexError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func unescape(ch rune) (rune, bool) {
	switch ch {
	case '\\', '"':
		return ch, true
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'v':
		return '\v', true
	case 'r':
		return '\r', true
	default:
		return 0, false
	}
}

func isOperatorChar(ch rune) bool {
	switch ch {
	case '+', '-', '%', '/', '=', '*':
		return true
	}
	return false
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || isDigit(ch) || ch == '_'
}
