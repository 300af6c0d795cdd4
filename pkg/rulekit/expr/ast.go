package expr

import (
	"strconv"
	"strings"
)

// Node is one node of a compiled expression tree. Trees are immutable
// once built and may be evaluated concurrently.
//
// String renders the node back to source form. Rendering is lossy: floats
// always print with two decimals and every operator is parenthesized.
type Node interface {
	String() string
	node()
}

// Null is the null literal (null, nil, NULL).
type Null struct{}

// Field references a value of the input by dotted path.
type Field struct {
	Path string
}

// StringLit is a quoted string literal.
type StringLit struct {
	Value string
}

// IntLit is a 64-bit integer literal.
type IntLit struct {
	Value int64
}

// FloatLit is a 64-bit float literal.
type FloatLit struct {
	Value float64
}

// BoolLit is true or false.
type BoolLit struct {
	Value bool
}

// Array is a bracketed list of expressions.
type Array struct {
	Elems []Node
}

// Call invokes a registered function. The lexer emits a Call with no
// arguments as the head of a call; the parser fills Args.
type Call struct {
	Name string
	Args []Node
}

// Operator applies Op to one (prefix) or two (infix) operands.
type Operator struct {
	Op       Op
	Operands []Node
}

func (Null) node()      {}
func (Field) node()     {}
func (StringLit) node() {}
func (IntLit) node()    {}
func (FloatLit) node()  {}
func (BoolLit) node()   {}
func (Array) node()     {}
func (Call) node()      {}
func (Operator) node()  {}

func (Null) String() string { return "null" }

func (n Field) String() string { return n.Path }

func (n StringLit) String() string { return `"` + n.Value + `"` }

func (n IntLit) String() string { return strconv.FormatInt(n.Value, 10) }

func (n FloatLit) String() string { return strconv.FormatFloat(n.Value, 'f', 2, 64) }

func (n BoolLit) String() string { return strconv.FormatBool(n.Value) }

func (n Array) String() string {
	return "[" + joinNodes(n.Elems) + "]"
}

func (n Call) String() string {
	return n.Name + "(" + joinNodes(n.Args) + ")"
}

func (n Operator) String() string {
	switch len(n.Operands) {
	case 1:
		return "(" + n.Op.String() + " " + n.Operands[0].String() + ")"
	case 2:
		return "(" + n.Operands[0].String() + " " + n.Op.String() + " " + n.Operands[1].String() + ")"
	default:
		return "(" + n.Op.String() + " <invalid>)"
	}
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ",")
}

// Walk calls fn for n and every node below it, depth first. If fn returns
// false the children of that node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch x := n.(type) {
	case Array:
		for _, e := range x.Elems {
			Walk(e, fn)
		}
	case Call:
		for _, a := range x.Args {
			Walk(a, fn)
		}
	case Operator:
		for _, o := range x.Operands {
			Walk(o, fn)
		}
	}
}

// Fields returns the distinct field paths referenced by n, in first-use order.
func Fields(n Node) []string {
	var paths []string
	seen := make(map[string]bool)
	Walk(n, func(node Node) bool {
		if f, ok := node.(Field); ok && !seen[f.Path] {
			seen[f.Path] = true
			paths = append(paths, f.Path)
		}
		return true
	})
	return paths
}
