package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/evolve/internal/codec"
	"github.com/roach88/evolve/internal/grammar"
	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/value"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	pairFlags
	Input string // binary data file
	Hex   string // inline hex data
}

// DecodeResult is a value read through a resolution grammar.
type DecodeResult struct {
	Writer string          `json:"writer"`
	Reader string          `json:"reader"`
	Value  json.RawMessage `json:"value"`
	Reads  []codec.Read    `json:"reads,omitempty"`
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <schemas>",
		Short: "Decode writer data as a reader value",
		Long: `Decode data written with the writer schema through the resolution
grammar of the pair, printing the reader's view as canonical JSON.

Data that reaches a deferred error (a missing required field, a null read
as required, an enum symbol the reader lacks) fails with E011. With
--verbose every read is listed on stderr.

Examples:
  evolve decode v1.cue --writer User --reader-schemas v2.cue --input user.bin
  evolve decode v1.cue --writer User --hex 02...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args[0], cmd)
		},
	}

	opts.pairFlags.bind(cmd)
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "file holding the encoded data")
	cmd.Flags().StringVar(&opts.Hex, "hex", "", "encoded data as hex")

	return cmd
}

func runDecode(opts *DecodeOptions, schemasPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	pair, err := opts.pairFlags.load(schemasPath)
	if err != nil {
		return loadError(formatter, err)
	}

	data, err := readData(opts.Input, opts.Hex)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err.Error(), nil)
	}

	g, err := grammar.NewCompiler(opts.logger()).Resolve(pair.writer, pair.reader)
	if err != nil {
		return grammarError(formatter, err)
	}

	var trace codec.Trace
	v, err := codec.Decode(g, data, codec.WithTrace(&trace))
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDecodeFailed, err.Error(), nil)
	}

	canonical, err := value.MarshalCanonical(v)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDecodeFailed, err.Error(), nil)
	}

	for _, r := range trace.Reads {
		src := "input"
		if r.Default {
			src = "default"
		}
		formatter.VerboseLog("  %-7s %s@%d+%d", src, r.Kind, r.Offset, r.Len)
	}

	result := DecodeResult{
		Writer: schema.Describe(pair.writer),
		Reader: schema.Describe(pair.reader),
		Value:  canonical,
	}
	if formatter.Verbose {
		result.Reads = trace.Reads
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, string(canonical))
	return nil
}

// readData returns raw bytes from a file or a hex string.
func readData(path, hexData string) ([]byte, error) {
	switch {
	case path != "" && hexData != "":
		return nil, fmt.Errorf("--input and --hex are mutually exclusive")
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading data: %w", err)
		}
		return data, nil
	case hexData != "":
		data, err := hex.DecodeString(strings.Join(strings.Fields(hexData), ""))
		if err != nil {
			return nil, fmt.Errorf("parsing hex: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("--input or --hex is required")
	}
}
