package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/evolve/internal/store"
)

// RegistryOptions holds flags shared by the registry commands.
type RegistryOptions struct {
	*RootOptions
	Database string
}

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	RegistryOptions
	Type string
}

// HistoryEntry is one registered version with the readers resolved
// against it.
type HistoryEntry struct {
	store.Entry
	Readers []store.Resolution `json:"readers"`
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RegistryOptions: RegistryOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "register <schemas>",
		Short: "Register a schema version",
		Long: `Register a schema type in the registry under its fingerprint.

Each distinct fingerprint registered under a name gets the next version.
Registering a fingerprint that is already present is a no-op and reports
the existing version.

Examples:
  evolve register schemas/user_v1.cue --type User
  evolve register schemas/user_v2.cue --type User --db evolve.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "type name to register")
	cmd.Flags().StringVar(&opts.Database, "db", "", "schema registry path (default: registry.path from config)")

	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegistryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <name>",
		Short: "List the registered versions of a type",
		Long: `List every version registered under a type name, oldest first,
with the readers each version has been resolved against.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "schema registry path (default: registry.path from config)")

	return cmd
}

// openRegistry opens the registry at path, or at the configured path when
// path is empty.
func openRegistry(opts *RootOptions, path string) (*store.Store, error) {
	if path == "" {
		path = opts.cfg().Registry.Path
	}
	if path == "" {
		return nil, errors.New("no registry path: set --db or registry.path")
	}
	return store.Open(path)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runRegister(opts *RegisterOptions, schemasPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	loaded, err := LoadSchemas(schemasPath)
	if err != nil {
		return loadError(formatter, err)
	}
	n, err := loaded.Lookup(opts.Type)
	if err != nil {
		return loadError(formatter, err)
	}

	entry, err := store.NewEntry(opts.Type, n, loaded.Source)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, err.Error(), nil)
	}
	// The stored source must compile back to the same graph.
	if _, err := entry.Load(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, err.Error(), nil)
	}

	st, err := openRegistry(opts.RootOptions, opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, err.Error(), nil)
	}
	defer st.Close()

	registered, err := st.Register(ctx, entry)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, err.Error(), nil)
	}
	formatter.VerboseLog("Registered at seq %d", registered.Seq)

	if formatter.Format == "json" {
		registered.Source = ""
		return formatter.Success(registered)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s v%d\n", registered.Name, registered.Version)
	fmt.Fprintf(formatter.Writer, "  %s\n", registered.Fingerprint)
	return nil
}

func runHistory(opts *RegistryOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	st, err := openRegistry(opts.RootOptions, opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, err.Error(), nil)
	}
	defer st.Close()

	entries, err := st.History(ctx, name)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, err.Error(), nil)
	}

	history := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		readers, err := st.ReadersOf(ctx, e.Fingerprint)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeRegistry, err.Error(), nil)
		}
		e.Source = ""
		history = append(history, HistoryEntry{Entry: e, Readers: readers})
	}

	if formatter.Format == "json" {
		return formatter.Success(history)
	}

	w := formatter.Writer
	if len(history) == 0 {
		fmt.Fprintf(w, "No versions registered for %s.\n", name)
		return nil
	}
	for _, h := range history {
		fmt.Fprintf(w, "v%d  %s\n", h.Version, h.Fingerprint)
		for _, r := range h.Readers {
			fmt.Fprintf(w, "  -> %s (%d deferred)\n", r.ReaderFingerprint, r.Deferred)
		}
	}
	return nil
}
