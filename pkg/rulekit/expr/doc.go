/*
Package expr compiles and evaluates the rule expression language.

# Overview

An expression is compiled once into an immutable tree (Node) and then
evaluated any number of times, concurrently if needed, against a dynamic
input value. Compilation runs three stages:

	source -> [StripComments] -> Lex -> Parse -> Node

StripComments is optional and enabled with WithStrictComments.

# Syntax

	<expr>  := <leaf> | <unary> <expr> | <expr> <binary> <expr>
	         | '(' <expr> ')' | '[' <list> ']' | <name> '(' <list> ')'
	<list>  := [ <expr> { ',' <expr> } [ ',' ] ]
	<leaf>  := number | 'string' | "string" | true | false | null | nil | field

A field is a dotted path into the input (payment.total_amount). A name
written directly before '(' with no space is a function call. Identifiers
beginning with '_' and the characters '{' and '}' are reserved.

Block comments, opened with slash-star and closed with star-slash, may
appear between tokens.

# Operators

Operators fall into three precedence classes, tightest first:

	arithmetic   + - * / % & | ^ << >> and prefix - ! ~
	relational   > >= < <= == !=
	logical      && ||

There is no precedence inside a class. Chains evaluate left to right, so
"1 + 2 * 3" is 9 and "a > b > c" compares the boolean (a > b) with c.
Use parentheses to group.

# Values

Evaluation works on plain Go values:

  - nil: null
  - bool
  - int64 and float64: numbers
  - string
  - []any: array
  - map[string]any: object

Use Normalize to convert other Go values (int, structs, json.Number) into
this model.

Arithmetic on two integers stays integral; a float on either side makes the
result a float. Bitwise and shift operators require integers. null counts
as 0 in arithmetic. == and != compare structurally and never coerce,
so 1 == 1.0 is false.

# Truthiness

  - null, false, 0, 0.0 and "": false
  - every other value, including empty arrays and objects: true

# Missing fields

Reading a path whose key is absent returns an error matching
ErrFieldNotFound. When treats that as false, so a predicate over an
optional field simply does not match:

	n := expr.MustCompile("country == 'CA'")
	ok, err := expr.When(n, nil, map[string]any{"age": int64(17)}) // false, nil

Inside a function argument or an array element the same condition is an
ordinary evaluation error.

# Functions

Calls are resolved through a Functions registry at evaluation time:

	fns := registry.New[string, expr.Function]()
	fns.Register("double", expr.FunctionFunc(func(_ expr.Functions, args []any) (any, error) {
	    n, err := expr.ToNumber(args[0])
	    ...
	}))
	v, err := expr.Value(expr.MustCompile("double(x) + 1"), fns.Snapshot(), input)
*/
package expr
