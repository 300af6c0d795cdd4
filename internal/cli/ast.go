package cli

import (
	"fmt"
	"io"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
	"github.com/spf13/cobra"
)

// ASTResult is the JSON payload of the ast command.
type ASTResult struct {
	Expression string   `json:"expression"`
	Tree       string   `json:"tree"`
	Fields     []string `json:"fields,omitempty"`
}

// NewASTCommand creates the ast command.
func NewASTCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "ast <expression>",
		Short: "Print the parsed form of an expression",
		Long: `Compile an expression and print it fully parenthesized, showing how
operators group.

Examples:
  rulectl ast "10 + 1002 / 2"
  rulectl ast "a > b || c < d" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			var opts []expr.Option
			if strict {
				opts = append(opts, expr.WithStrictComments())
			}
			n, err := expr.Compile(args[0], opts...)
			if err != nil {
				return f.Fail(ExitFailure, ErrCodeCompile, "compile expression", err)
			}

			result := ASTResult{Expression: args[0], Tree: n.String(), Fields: expr.Fields(n)}
			return f.Success(result, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, result.Tree)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict-comments", false, "strip comments in a separate pass")

	return cmd
}
