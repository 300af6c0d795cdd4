package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a Token.
type TokenKind uint8

const (
	TokenOperator TokenKind = iota
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenComma
	TokenLeaf
)

// Token is one lexical unit. Literals, fields and call heads are resolved
// to their Node by the lexer and carried in Leaf.
type Token struct {
	Kind TokenKind
	Op   Op   // set for TokenOperator
	Leaf Node // set for TokenLeaf
	Pos  int  // byte offset in the source
}

// String renders the token for diagnostics.
func (t Token) String() string {
	switch t.Kind {
	case TokenOperator:
		return t.Op.String()
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenLBracket:
		return "["
	case TokenRBracket:
		return "]"
	case TokenLBrace:
		return "{"
	case TokenRBrace:
		return "}"
	case TokenComma:
		return ","
	case TokenLeaf:
		if c, ok := t.Leaf.(Call); ok {
			return c.Name + "("
		}
		return t.Leaf.String()
	}
	return "?"
}

var punctuation = map[byte]TokenKind{
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	'{': TokenLBrace,
	'}': TokenRBrace,
	',': TokenComma,
}

// Lex splits src into tokens.
//
// Whitespace is skipped, as are /* */ comments. Strings run from a quote
// (' or ") to the next identical quote with no escape processing. A number
// containing '.' is a float. An identifier immediately followed by '('
// becomes a call head. true and false are exact; null and nil match in
// any case. Identifiers beginning with '_' are reserved.
func Lex(src string) ([]Token, error) {
	var tokens []Token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, &LexError{Pos: i, Msg: "unterminated comment", Err: ErrCommentMismatch}
			}
			i += 2 + end + 2

		case isPunctuation(c):
			tokens = append(tokens, Token{Kind: punctuation[c], Pos: i})
			i++

		case c == '"' || c == '\'':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return nil, &LexError{Pos: i, Msg: "unterminated string"}
			}
			tokens = append(tokens, Token{Kind: TokenLeaf, Leaf: StringLit{Value: src[i+1 : i+1+end]}, Pos: i})
			i += end + 2

		case isDigit(c):
			tok, n, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i += n

		case c == '_':
			return nil, &LexError{Pos: i, Msg: "identifiers beginning with '_' are reserved", Err: ErrReserved}

		default:
			if op, n := matchOperator(src[i:]); n > 0 {
				tokens = append(tokens, Token{Kind: TokenOperator, Op: op, Pos: i})
				i += n
				continue
			}
			r, size := utf8.DecodeRuneInString(src[i:])
			if !unicode.IsLetter(r) {
				return nil, &LexError{Pos: i, Msg: fmt.Sprintf("unknown character %q", r)}
			}
			tok, n := lexIdent(src, i, size)
			tokens = append(tokens, tok)
			i += n
		}
	}
	return tokens, nil
}

func isPunctuation(c byte) bool {
	_, ok := punctuation[c]
	return ok
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func lexNumber(src string, start int) (Token, int, error) {
	end := start
	isFloat := false
	for end < len(src) && (isDigit(src[end]) || src[end] == '.') {
		if src[end] == '.' {
			isFloat = true
		}
		end++
	}
	text := src[start:end]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Token{}, 0, &LexError{Pos: start, Msg: fmt.Sprintf("invalid float %q", text), Err: err}
		}
		return Token{Kind: TokenLeaf, Leaf: FloatLit{Value: f}, Pos: start}, end - start, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Token{}, 0, &LexError{Pos: start, Msg: fmt.Sprintf("invalid integer %q", text), Err: err}
	}
	return Token{Kind: TokenLeaf, Leaf: IntLit{Value: n}, Pos: start}, end - start, nil
}

// lexIdent scans a field path, keyword or call head starting at start,
// whose first rune is size bytes long.
func lexIdent(src string, start, size int) (Token, int) {
	end := start + size
	for end < len(src) {
		r, n := utf8.DecodeRuneInString(src[end:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			break
		}
		end += n
	}
	word := src[start:end]

	var leaf Node
	switch {
	case word == "true":
		leaf = BoolLit{Value: true}
	case word == "false":
		leaf = BoolLit{Value: false}
	case strings.EqualFold(word, "null") || strings.EqualFold(word, "nil"):
		leaf = Null{}
	case end < len(src) && src[end] == '(':
		leaf = Call{Name: word}
	default:
		leaf = Field{Path: word}
	}
	return Token{Kind: TokenLeaf, Leaf: leaf, Pos: start}, end - start
}
