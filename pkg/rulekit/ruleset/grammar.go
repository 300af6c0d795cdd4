package ruleset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/rulekit/pkg/rulekit"
	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
)

// EngineExpr is the expression engine, the default for rules whose
// header names none.
const EngineExpr = "expr"

// ErrSyntax indicates rule text that does not follow the grammar.
var ErrSyntax = errors.New("rule syntax error")

// ErrEngine indicates a rule written for an engine Apply cannot build.
var ErrEngine = errors.New("unsupported rule engine")

// Definition is one parsed rule, not yet compiled.
type Definition struct {
	Name        string
	Description string
	// Engine is the rule's backend, EngineExpr unless the header names another.
	Engine string
	// When holds one expression per condition.
	When []string
	// Then is the assignment source, "path = expr; path = expr".
	Then string
	// Source names the file or store entry the rule came from, if any.
	Source string
}

// SyntaxError reports malformed rule text.
type SyntaxError struct {
	// Rule is the rule being parsed, if its header was read.
	Rule string
	Msg  string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Rule == "" {
		return "rule syntax: " + e.Msg
	}
	return fmt.Sprintf("rule %s: syntax: %s", e.Rule, e.Msg)
}

// Unwrap returns ErrSyntax for errors.Is support.
func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// Parse reads every rule in text.
//
// Example:
//
//	defs, err := ruleset.Parse(`
//	rule ADULT
//	when age > 18
//	then stage = 'adult'`)
func Parse(text string) ([]Definition, error) {
	src, err := expr.StripComments(text)
	if err != nil {
		return nil, fmt.Errorf("strip comments: %w", err)
	}

	kws := scanKeywords(src)
	if len(kws) == 0 {
		if strings.TrimSpace(src) != "" {
			return nil, &SyntaxError{Msg: "rule must start with 'rule'"}
		}
		return nil, nil
	}
	if lead := strings.TrimSpace(src[:kws[0].start]); lead != "" || kws[0].word != kwRule {
		return nil, &SyntaxError{Msg: "rule must start with 'rule'"}
	}

	var defs []Definition
	for i := 0; i < len(kws); {
		// Each rule spans its own keywords up to the next "rule".
		j := i + 1
		for j < len(kws) && kws[j].word != kwRule {
			j++
		}
		end := len(src)
		if j < len(kws) {
			end = kws[j].start
		}

		def, err := parseRule(src, kws[i:j], end)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
		i = j
	}
	return defs, nil
}

// parseRule reads one rule from its keywords. kws[0] is "rule".
func parseRule(src string, kws []keyword, end int) (Definition, error) {
	whenAt := len(kws)
	if len(kws) > 1 {
		whenAt = 1
	}
	header := strings.Fields(src[kws[0].end:end])
	if whenAt < len(kws) {
		header = strings.Fields(src[kws[0].end:kws[whenAt].start])
	}
	if len(header) == 0 {
		return Definition{}, &SyntaxError{Msg: "missing rule name"}
	}

	def := Definition{Name: header[0], Engine: EngineExpr}
	if len(header) > 1 {
		def.Description = header[1]
	}
	if len(header) > 2 {
		def.Engine = strings.ToLower(header[2])
	}

	if len(kws) != 3 || kws[1].word != kwWhen || kws[2].word != kwThen {
		return Definition{}, &SyntaxError{
			Rule: def.Name,
			Msg:  "want exactly one 'when' followed by one 'then'",
		}
	}

	for _, cond := range rulekit.SplitClauses(src[kws[1].end:kws[2].start]) {
		if cond = strings.TrimSpace(cond); cond != "" {
			def.When = append(def.When, cond)
		}
	}
	def.Then = strings.TrimSpace(src[kws[2].end:end])
	return def, nil
}

const (
	kwRule = "rule"
	kwWhen = "when"
	kwThen = "then"
)

// keyword is a grammar keyword found outside string literals.
type keyword struct {
	word       string
	start, end int
}

// scanKeywords finds rule, when and then as whole words outside quotes.
// "rule" only counts as the first word on its line.
func scanKeywords(src string) []keyword {
	var kws []keyword
	var quote byte
	lineStart := true

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			continue
		case c == '"' || c == '\'':
			quote = c
			lineStart = false
			continue
		case c == '\n':
			lineStart = true
			continue
		case c == ' ' || c == '\t' || c == '\r':
			continue
		case !isWordStart(c) || (i > 0 && isWordByte(src[i-1])):
			lineStart = false
			continue
		}

		j := i
		for j < len(src) && isWordByte(src[j]) {
			j++
		}
		word := strings.ToLower(src[i:j])
		switch {
		case word == kwRule && lineStart:
			kws = append(kws, keyword{word: word, start: i, end: j})
		case word == kwWhen || word == kwThen:
			kws = append(kws, keyword{word: word, start: i, end: j})
		}
		lineStart = false
		i = j - 1
	}
	return kws
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isWordByte includes '.' so that a field path like "order.then" is one word.
func isWordByte(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '.'
}
