// Command rulectl evaluates and checks rulekit rules from the command line.
//
// Usage:
//
//	# Evaluate a directory of rules against an input document
//	rulectl eval --rules ./rules --input order.json
//
//	# Compile rules and report errors
//	rulectl check --rules ./rules
//
//	# Show how an expression groups
//	rulectl ast "10 + 1002 / 2"
//
//	# Keep a rule store and evaluate from it
//	rulectl store put orders.rule ./rules/orders.rule --driver sqlite --path rules.db
//	rulectl eval --store --config rulekit.yaml --input order.json
//
//	# Re-evaluate whenever rule files change
//	rulectl watch --rules ./rules --input order.json
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/randalmurphal/rulekit/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		// Commands print their own failures; only usage errors reach here unprinted.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
