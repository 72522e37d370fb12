package cli

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/evolve/internal/codec"
	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/value"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	Type   string // writer type name
	Input  string // YAML or JSON value file
	Value  string // inline YAML or JSON value
	Output string // binary output file
}

// EncodeResult describes an encoded value.
type EncodeResult struct {
	Type   string `json:"type"`
	Length int    `json:"length"`
	Hex    string `json:"hex"`
	Output string `json:"output,omitempty"`
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode <schemas>",
		Short: "Encode a value with a writer schema",
		Long: `Encode a YAML or JSON value in the binary format of a writer schema.

Record fields missing from the value take their default, or null when the
field is nullable. Without --output the encoding is printed as hex.

Examples:
  evolve encode schemas/user_v1.cue --type User --value '{id: 1, name: ada}'
  evolve encode schemas/user_v1.cue --type User --input user.yaml --output user.bin`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "writer type name")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "YAML or JSON file holding the value")
	cmd.Flags().StringVar(&opts.Value, "value", "", "inline YAML or JSON value")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the encoding to a file")

	return cmd
}

func runEncode(opts *EncodeOptions, schemasPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadSchemas(schemasPath)
	if err != nil {
		return loadError(formatter, err)
	}
	n, err := loaded.Lookup(opts.Type)
	if err != nil {
		return loadError(formatter, err)
	}

	v, err := readValue(opts.Input, opts.Value)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err.Error(), nil)
	}

	data, err := codec.Encode(n, v)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeEncodeFailed, err.Error(), nil)
	}
	formatter.VerboseLog("Encoded %s in %d byte(s)", schema.Describe(n), len(data))

	result := EncodeResult{
		Type:   schema.Describe(n),
		Length: len(data),
		Hex:    hex.EncodeToString(data),
		Output: opts.Output,
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "✓ Wrote %d byte(s) to %s\n", result.Length, opts.Output)
		return nil
	}
	fmt.Fprintln(formatter.Writer, result.Hex)
	return nil
}

// readValue parses a value from a file or an inline document. YAML is a
// superset of JSON, so both are accepted.
func readValue(path, inline string) (value.Value, error) {
	var src []byte
	switch {
	case path != "" && inline != "":
		return nil, fmt.Errorf("--input and --value are mutually exclusive")
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading value: %w", err)
		}
		src = data
	case inline != "":
		src = []byte(inline)
	default:
		return nil, fmt.Errorf("--input or --value is required")
	}

	var doc any
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parsing value: %w", err)
	}
	return value.FromAny(doc)
}
