package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/randalmurphal/rulekit/pkg/rulekit/config"
	"github.com/randalmurphal/rulekit/pkg/rulekit/ruleset"
	"github.com/randalmurphal/rulekit/pkg/rulekit/store"
	"github.com/spf13/cobra"
)

// StoreOptions overrides the configured rule store.
type StoreOptions struct {
	Driver string
	Path   string
}

// StoreEntry is one rule source in list output.
type StoreEntry struct {
	Name     string    `json:"name"`
	Sequence int       `json:"sequence"`
	Size     int64     `json:"size"`
	Updated  time.Time `json:"updated"`
}

// NewStoreCommand creates the store command and its subcommands.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{}

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage rule sources in the rule store",
		Long: `Add, list, show and remove rule sources kept in a sqlite or bolt rule store.

The store comes from the config's store section; --driver and --path
override it.

Examples:
  rulectl store put orders.rule ./rules/orders.rule --driver sqlite --path rules.db
  rulectl store list --driver sqlite --path rules.db
  rulectl eval --store --config rulekit.yaml --input order.json`,
	}

	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver (memory|sqlite|bolt)")
	cmd.PersistentFlags().StringVar(&opts.Path, "path", "", "store database file")

	cmd.AddCommand(newStorePutCommand(rootOpts, opts))
	cmd.AddCommand(newStoreGetCommand(rootOpts, opts))
	cmd.AddCommand(newStoreListCommand(rootOpts, opts))
	cmd.AddCommand(newStoreRemoveCommand(rootOpts, opts))

	return cmd
}

// open applies the overrides and opens the store.
func (o *StoreOptions) open(rootOpts *RootOptions) (store.Store, error) {
	s, err := rootOpts.settings()
	if err != nil {
		return nil, err
	}
	if o.Driver != "" {
		s.Store = o.Driver
	}
	if o.Path != "" {
		s.StorePath = o.Path
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s.OpenStore()
}

// withStore opens the store, runs fn and closes the store.
func withStore(rootOpts *RootOptions, opts *StoreOptions, cmd *cobra.Command, fn func(f *OutputFormatter, st store.Store) error) error {
	f := rootOpts.formatter(cmd)
	st, err := opts.open(rootOpts)
	if err != nil {
		if errors.Is(err, config.ErrInvalidSettings) {
			return f.Fail(ExitCommandError, ErrCodeConfig, "open store", err)
		}
		return f.Fail(ExitCommandError, ErrCodeStore, "open store", err)
	}
	defer func() { _ = st.Close() }()
	return fn(f, st)
}

func newStorePutCommand(rootOpts *RootOptions, opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <name> <file>",
		Short: "Store a rule source after checking that it parses",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, path := args[0], args[1]
			return withStore(rootOpts, opts, cmd, func(f *OutputFormatter, st store.Store) error {
				data, err := os.ReadFile(path)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeLoad, "read rule file", err)
				}
				defs, err := ruleset.ParseSource(name, data)
				if err != nil {
					return f.Fail(ExitFailure, ErrCodeLoad, "parse rule source", err)
				}
				if _, err := ruleset.Build(defs); err != nil {
					return f.Fail(ExitFailure, ErrCodeCompile, "compile rule source", err)
				}
				if err := st.Put(name, data); err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, "put", err)
				}
				return f.Success(map[string]any{"name": name, "rules": len(defs)}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "✓ stored %s (%d rule(s))\n", name, len(defs))
					return err
				})
			})
		},
	}
}

func newStoreGetCommand(rootOpts *RootOptions, opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a stored rule source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, opts, cmd, func(f *OutputFormatter, st store.Store) error {
				data, err := st.Get(args[0])
				if err != nil {
					return f.Fail(ExitFailure, ErrCodeStore, "get", err)
				}
				return f.Success(map[string]any{"name": args[0], "source": string(data)}, func(w io.Writer) error {
					_, err := w.Write(data)
					return err
				})
			})
		},
	}
}

func newStoreListCommand(rootOpts *RootOptions, opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored rule sources in load order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, opts, cmd, func(f *OutputFormatter, st store.Store) error {
				infos, err := st.List()
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, "list", err)
				}
				entries := make([]StoreEntry, 0, len(infos))
				for _, info := range infos {
					entries = append(entries, StoreEntry{
						Name:     info.Name,
						Sequence: info.Sequence,
						Size:     info.Size,
						Updated:  info.Updated,
					})
				}
				return f.Success(entries, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tSIZE\tUPDATED")
					for _, e := range entries {
						fmt.Fprintf(tw, "%s\t%d\t%s\n", e.Name, e.Size, e.Updated.Format(time.RFC3339))
					}
					return tw.Flush()
				})
			})
		},
	}
}

func newStoreRemoveCommand(rootOpts *RootOptions, opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"delete"},
		Short:   "Remove a stored rule source",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, opts, cmd, func(f *OutputFormatter, st store.Store) error {
				if err := st.Delete(args[0]); err != nil {
					return f.Fail(ExitFailure, ErrCodeStore, "delete", err)
				}
				return f.Success(map[string]any{"name": args[0]}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "✓ removed %s\n", args[0])
					return err
				})
			})
		},
	}
}
