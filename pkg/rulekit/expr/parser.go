package expr

import "fmt"

// Parse reduces a token sequence to a single expression tree.
//
// Reduction walks the tokens left to right carrying the value built so far
// (the left operand). An infix operator takes as its right operand every
// following token up to, but not including, the next operator of the same
// or a looser class outside any open parenthesis or bracket. Operators of
// one class therefore associate left to right: "a > b > c" is
// "(a > b) > c" and "1 + 2 * 3" is "(1 + 2) * 3".
//
// '-' is subtraction after a left operand and negation otherwise. '!' and
// '~' are prefix only.
func Parse(tokens []Token) (Node, error) {
	return reduce(nil, tokens)
}

// reduce folds toks onto left. Sub-slices of the original token slice
// are passed down; nothing is mutated.
func reduce(left Node, toks []Token) (Node, error) {
	for len(toks) > 0 {
		tok := toks[0]
		toks = toks[1:]

		switch tok.Kind {
		case TokenOperator:
			node, rest, err := reduceOperator(left, tok, toks)
			if err != nil {
				return nil, err
			}
			left, toks = node, rest

		case TokenLeaf:
			if left != nil {
				return nil, parseErrorf(tok.Pos, "unexpected %s after a complete expression; join expressions with an operator", tok)
			}
			if call, ok := tok.Leaf.(Call); ok {
				node, rest, err := reduceCall(call, tok.Pos, toks)
				if err != nil {
					return nil, err
				}
				left, toks = node, rest
				continue
			}
			left = tok.Leaf

		case TokenLParen:
			if left != nil {
				return nil, parseErrorf(tok.Pos, "unexpected '(' after a complete expression")
			}
			inner, rest, err := splitGroup(tok.Pos, toks)
			if err != nil {
				return nil, err
			}
			node, err := reduce(nil, inner)
			if err != nil {
				return nil, err
			}
			left, toks = node, rest

		case TokenLBracket:
			if left != nil {
				return nil, parseErrorf(tok.Pos, "unexpected '[' after a complete expression")
			}
			segments, rest, err := splitList(tok.Pos, toks, TokenRBracket)
			if err != nil {
				return nil, err
			}
			elems, err := reduceAll(segments)
			if err != nil {
				return nil, err
			}
			left, toks = Array{Elems: elems}, rest

		case TokenRParen:
			return nil, parseErrorf(tok.Pos, "')' without matching '('")

		case TokenRBracket:
			return nil, parseErrorf(tok.Pos, "']' without matching '['")

		case TokenLBrace, TokenRBrace:
			return nil, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("reserved character '%s'", tok), Err: ErrReserved}

		case TokenComma:
			return nil, parseErrorf(tok.Pos, "unexpected ',' outside an array or argument list")

		default:
			return nil, parseErrorf(tok.Pos, "unknown token %s", tok)
		}
	}

	if left == nil {
		return nil, &ParseError{Pos: -1, Msg: "empty expression", Err: ErrEmptyExpression}
	}
	return left, nil
}

func reduceOperator(left Node, tok Token, toks []Token) (Node, []Token, error) {
	op := tok.Op
	prefix := left == nil
	switch {
	case prefix && !op.Prefix():
		return nil, nil, parseErrorf(tok.Pos, "operator %s needs a left operand", op)
	case !prefix && !op.Infix():
		return nil, nil, parseErrorf(tok.Pos, "operator %s cannot follow an operand", op)
	}

	operand, rest := splitOperand(toks, op.Class())
	right, err := reduce(nil, operand)
	if err != nil {
		return nil, nil, wrapOperand(tok, err)
	}
	if prefix {
		return Operator{Op: op, Operands: []Node{right}}, rest, nil
	}
	return Operator{Op: op, Operands: []Node{left, right}}, rest, nil
}

func reduceCall(head Call, pos int, toks []Token) (Node, []Token, error) {
	if len(toks) == 0 || toks[0].Kind != TokenLParen {
		return nil, nil, parseErrorf(pos, "function %s must be followed by '('", head.Name)
	}
	segments, rest, err := splitList(toks[0].Pos, toks[1:], TokenRParen)
	if err != nil {
		return nil, nil, err
	}
	args, err := reduceAll(segments)
	if err != nil {
		return nil, nil, fmt.Errorf("function %s: %w", head.Name, err)
	}
	return Call{Name: head.Name, Args: args}, rest, nil
}

func reduceAll(segments [][]Token) ([]Node, error) {
	nodes := make([]Node, 0, len(segments))
	for _, seg := range segments {
		n, err := reduce(nil, seg)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// splitOperand returns the tokens forming the right operand of an operator
// of class c, and the remainder. The operand ends before the first
// operator of class c or looser that is not nested in () or [].
func splitOperand(toks []Token, c Class) (operand, rest []Token) {
	depth := 0
	for i, t := range toks {
		switch t.Kind {
		case TokenLParen, TokenLBracket:
			depth++
		case TokenRParen, TokenRBracket:
			depth--
		case TokenOperator:
			// A leading prefix operator belongs to the operand ("1 - -2").
			if i == 0 && t.Op.Prefix() {
				continue
			}
			if depth == 0 && t.Op.Class() >= c {
				return toks[:i], toks[i:]
			}
		}
	}
	return toks, nil
}

// splitGroup returns the tokens inside a parenthesized group whose '('
// has already been consumed, and the tokens after the matching ')'.
func splitGroup(openPos int, toks []Token) (inner, rest []Token, err error) {
	depth := 1
	for i, t := range toks {
		switch t.Kind {
		case TokenLParen:
			depth++
		case TokenRParen:
			depth--
			if depth == 0 {
				return toks[:i], toks[i+1:], nil
			}
		}
	}
	return nil, nil, parseErrorf(openPos, "'(' is never closed")
}

// splitList splits the comma separated elements of an array or argument
// list whose opener has already been consumed. Only commas directly
// inside the list separate elements. A trailing comma is ignored.
func splitList(openPos int, toks []Token, closer TokenKind) (segments [][]Token, rest []Token, err error) {
	parens, brackets := 0, 0
	if closer == TokenRParen {
		parens = 1
	} else {
		brackets = 1
	}
	atTop := func() bool {
		if closer == TokenRParen {
			return parens == 1 && brackets == 0
		}
		return brackets == 1 && parens == 0
	}

	start := 0
	for i, t := range toks {
		switch t.Kind {
		case TokenComma:
			if atTop() {
				segments = append(segments, toks[start:i])
				start = i + 1
			}
			continue
		case TokenLParen:
			parens++
		case TokenRParen:
			parens--
		case TokenLBracket:
			brackets++
		case TokenRBracket:
			brackets--
		}
		if t.Kind == closer && parens == 0 && brackets == 0 {
			if i > start {
				segments = append(segments, toks[start:i])
			}
			return segments, toks[i+1:], nil
		}
	}
	opener := "("
	if closer == TokenRBracket {
		opener = "["
	}
	return nil, nil, parseErrorf(openPos, "'%s' is never closed", opener)
}

func parseErrorf(pos int, format string, args ...any) error {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// wrapOperand gives an empty operand a message naming the operator.
func wrapOperand(tok Token, err error) error {
	if pe, ok := err.(*ParseError); ok && pe.Err == ErrEmptyExpression {
		return &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("operator %s is missing its right operand", tok.Op), Err: ErrEmptyExpression}
	}
	return err
}
