package expr

import "fmt"

// Hooks are optional checks run between compilation stages. Each hook
// may rewrite its input or reject it by returning an error, which aborts
// the compilation.
type Hooks struct {
	// BeforeStrip sees the raw source.
	BeforeStrip func(src string) (string, error)
	// AfterStrip sees the source after comment removal. It only runs
	// when strict comments are enabled.
	AfterStrip func(src string) (string, error)
	// AfterLex sees the token sequence.
	AfterLex func(tokens []Token) ([]Token, error)
	// AfterParse sees the finished tree.
	AfterParse func(n Node) (Node, error)
}

type compileConfig struct {
	strictComments bool
	hooks          Hooks
}

// Option configures Compile.
type Option func(*compileConfig)

// WithStrictComments strips /* */ comments in a separate pass before
// lexing. Use it when comments may appear inside multi-character
// operators, and to reject unbalanced comment markers.
func WithStrictComments() Option {
	return func(c *compileConfig) {
		c.strictComments = true
	}
}

// WithHooks installs compilation hooks. Later calls replace earlier ones.
func WithHooks(h Hooks) Option {
	return func(c *compileConfig) {
		c.hooks = h
	}
}

// Compile turns source text into an expression tree.
//
// Example:
//
//	n, err := expr.Compile("age > 18 && country == 'CA'")
//	ok, err := expr.When(n, nil, map[string]any{"age": int64(20), "country": "CA"})
func Compile(src string, opts ...Option) (Node, error) {
	var cfg compileConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	h := cfg.hooks

	var err error
	if h.BeforeStrip != nil {
		if src, err = h.BeforeStrip(src); err != nil {
			return nil, fmt.Errorf("before strip hook: %w", err)
		}
	}

	if cfg.strictComments {
		if src, err = StripComments(src); err != nil {
			return nil, err
		}
		if h.AfterStrip != nil {
			if src, err = h.AfterStrip(src); err != nil {
				return nil, fmt.Errorf("after strip hook: %w", err)
			}
		}
	}

	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	if h.AfterLex != nil {
		if tokens, err = h.AfterLex(tokens); err != nil {
			return nil, fmt.Errorf("after lex hook: %w", err)
		}
	}

	n, err := Parse(tokens)
	if err != nil {
		return nil, err
	}
	if h.AfterParse != nil {
		if n, err = h.AfterParse(n); err != nil {
			return nil, fmt.Errorf("after parse hook: %w", err)
		}
	}
	return n, nil
}

// MustCompile is like Compile but panics on error.
// Intended for tests and package-level tables.
func MustCompile(src string, opts ...Option) Node {
	n, err := Compile(src, opts...)
	if err != nil {
		panic(fmt.Sprintf("expr: compile %q: %v", src, err))
	}
	return n
}
