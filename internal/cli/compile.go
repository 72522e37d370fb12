package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/evolve/internal/grammar"
	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/store"
	"github.com/roach88/evolve/internal/symbol"
)

// pairFlags select a writer and a reader type. The reader defaults to
// the writer and is looked up in ReaderSchemas when that is set.
type pairFlags struct {
	Writer        string
	Reader        string
	ReaderSchemas string
}

func (p *pairFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.Writer, "writer", "w", "", "writer type name")
	cmd.Flags().StringVarP(&p.Reader, "reader", "r", "", "reader type name (default: the writer)")
	cmd.Flags().StringVar(&p.ReaderSchemas, "reader-schemas", "", "schema file or directory declaring the reader (default: <schemas>)")
}

// resolvedPair is a writer and reader loaded from schema sources.
type resolvedPair struct {
	writer, reader *schema.Node
	readerName     string
	readerSource   string
}

func (p *pairFlags) loadReader(schemasPath string) (*schema.Node, string, string, error) {
	path := schemasPath
	if p.ReaderSchemas != "" {
		path = p.ReaderSchemas
	}
	name := p.Reader
	if name == "" {
		name = p.Writer
	}
	loaded, err := LoadSchemas(path)
	if err != nil {
		return nil, "", "", err
	}
	n, err := loaded.Lookup(name)
	if err != nil {
		return nil, "", "", err
	}
	return n, name, loaded.Source, nil
}

func (p *pairFlags) load(schemasPath string) (*resolvedPair, error) {
	loaded, err := LoadSchemas(schemasPath)
	if err != nil {
		return nil, err
	}
	writer, err := loaded.Lookup(p.Writer)
	if err != nil {
		return nil, err
	}
	reader, name, source, err := p.loadReader(schemasPath)
	if err != nil {
		return nil, err
	}
	return &resolvedPair{writer: writer, reader: reader, readerName: name, readerSource: source}, nil
}

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	pairFlags
	Output   string // output file path
	Database string // registry path, used with WriterFP
	WriterFP string // registered writer fingerprint
}

// CompileResult is the resolved grammar for a writer/reader pair.
type CompileResult struct {
	Writer            string   `json:"writer"`
	Reader            string   `json:"reader"`
	WriterFingerprint string   `json:"writer_fingerprint"`
	ReaderFingerprint string   `json:"reader_fingerprint"`
	Grammar           string   `json:"grammar"`
	Deferred          []string `json:"deferred"`
	Recorded          bool     `json:"recorded,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <schemas>",
		Short: "Compile a writer/reader pair into a resolution grammar",
		Long: `Compile a writer/reader schema pair into a resolution grammar.

The grammar is printed as an indented tree. Incompatibilities that only
matter for some data (a missing required field, a null read as required)
are embedded as deferred errors and listed after the grammar; problems
that make the pair unresolvable fail with an E2xx code.

With --writer-fp the writer is loaded from the schema registry instead
of from <schemas>, and the resolution is recorded there.

Examples:
  evolve compile schemas/user.cue --writer User
  evolve compile v1.cue --writer User --reader-schemas v2.cue
  evolve compile v2.cue --reader User --writer-fp 3f1c... --db evolve.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	opts.pairFlags.bind(cmd)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the grammar to a file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "schema registry path (default: registry.path from config)")
	cmd.Flags().StringVar(&opts.WriterFP, "writer-fp", "", "resolve a registered writer by fingerprint")

	return cmd
}

func runCompile(opts *CompileOptions, schemasPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	var (
		pair *resolvedPair
		st   *store.Store
	)
	if opts.WriterFP != "" {
		if opts.Reader == "" {
			return formatter.Fail(ExitCommandError, ErrCodeTypeNotFound, "--reader is required with --writer-fp", nil)
		}
		var err error
		st, err = openRegistry(opts.RootOptions, opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeRegistry, err.Error(), nil)
		}
		defer st.Close()

		pair, err = loadRegisteredPair(ctx, st, opts.WriterFP, &opts.pairFlags, schemasPath)
		if err != nil {
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				return loadError(formatter, err)
			}
			return formatter.Fail(ExitCommandError, ErrCodeRegistry, err.Error(), nil)
		}
	} else {
		if opts.Writer == "" {
			return formatter.Fail(ExitCommandError, ErrCodeTypeNotFound, "--writer or --writer-fp is required", nil)
		}
		var err error
		if pair, err = opts.pairFlags.load(schemasPath); err != nil {
			return loadError(formatter, err)
		}
	}

	formatter.VerboseLog("Resolving %s -> %s", schema.Describe(pair.writer), schema.Describe(pair.reader))

	result, err := compilePair(opts.RootOptions, pair)
	if err != nil {
		return grammarError(formatter, err)
	}

	if st != nil {
		recorded, err := st.RecordResolution(ctx, store.Resolution{
			WriterFingerprint: result.WriterFingerprint,
			ReaderFingerprint: result.ReaderFingerprint,
			Grammar:           result.Grammar,
			Deferred:          len(result.Deferred),
		})
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeRegistry, err.Error(), nil)
		}
		result.Recorded = true
		formatter.VerboseLog("Recorded resolution at seq %d", recorded.Seq)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(result.Grammar), 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// compilePair resolves a pair and collects its deferred errors.
func compilePair(opts *RootOptions, pair *resolvedPair) (*CompileResult, error) {
	g, err := grammar.NewCompiler(opts.logger()).Resolve(pair.writer, pair.reader)
	if err != nil {
		return nil, err
	}
	writerFP, err := schema.Fingerprint(pair.writer)
	if err != nil {
		return nil, err
	}
	readerFP, err := schema.Fingerprint(pair.reader)
	if err != nil {
		return nil, err
	}

	deferred := []string{}
	for _, e := range symbol.Errors(g) {
		deferred = append(deferred, e.Message)
	}

	return &CompileResult{
		Writer:            schema.Describe(pair.writer),
		Reader:            schema.Describe(pair.reader),
		WriterFingerprint: writerFP,
		ReaderFingerprint: readerFP,
		Grammar:           symbol.Dump(g),
		Deferred:          deferred,
	}, nil
}

// loadRegisteredPair loads the writer from the registry and the reader
// from source, registering the reader so the resolution can reference it.
func loadRegisteredPair(ctx context.Context, st *store.Store, writerFP string, flags *pairFlags, schemasPath string) (*resolvedPair, error) {
	entry, err := st.Lookup(ctx, writerFP)
	if err != nil {
		return nil, err
	}
	writer, err := entry.Load()
	if err != nil {
		return nil, err
	}

	reader, name, source, err := flags.loadReader(schemasPath)
	if err != nil {
		return nil, err
	}
	readerEntry, err := store.NewEntry(name, reader, source)
	if err != nil {
		return nil, err
	}
	if _, err := st.Register(ctx, readerEntry); err != nil {
		return nil, err
	}

	return &resolvedPair{writer: writer, reader: reader, readerName: name, readerSource: source}, nil
}

// grammarError reports a grammar construction failure. ConfigErrors keep
// their E2xx code. Unresolvable pairs are command-level errors.
func grammarError(f *OutputFormatter, err error) error {
	if ce, ok := grammar.AsConfigError(err); ok {
		return f.Fail(ExitCommandError, ce.Code, err.Error(), ce.Field)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}

// outputCompileSuccess outputs the grammar and its deferred errors.
func outputCompileSuccess(formatter *OutputFormatter, result *CompileResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Resolved %s -> %s\n", result.Writer, result.Reader)
	fmt.Fprintf(w, "  writer %s\n", result.WriterFingerprint)
	fmt.Fprintf(w, "  reader %s\n\n", result.ReaderFingerprint)

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote grammar to %s\n", outputFile)
	} else {
		fmt.Fprint(w, result.Grammar)
	}

	if len(result.Deferred) > 0 {
		fmt.Fprintf(w, "\n%d deferred error(s):\n", len(result.Deferred))
		for _, msg := range result.Deferred {
			fmt.Fprintf(w, "  ! %s\n", msg)
		}
	}
	if result.Recorded {
		fmt.Fprintln(w, "\nRecorded in registry")
	}

	return nil
}
