package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/evolve/internal/grammar"
	"github.com/roach88/evolve/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                     `json:"valid"`
	Types     []string                 `json:"types"`
	Errors    []schema.ValidationError `json:"errors,omitempty"`
	Recursion []schema.RecursionReport `json:"recursion,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schemas>",
		Short: "Validate schemas without building a grammar",
		Long: `Validate CUE schema declarations without resolving any pair.

Checks field and symbol names, enum and fixed payloads, counter element
types and every field default against its declared type. Recursive
record groups are reported; groups with no finite value are warnings.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := LoadSchemas(path)
	if err != nil {
		return loadError(formatter, err)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", len(loaded.Files), path)

	result := ValidationResult{
		Types:     loaded.Package.Names,
		Errors:    validatePackage(loaded.Package, formatter),
		Recursion: schema.AnalyzePackageRecursion(loaded.Package),
	}
	result.Valid = len(result.Errors) == 0

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validatePackage runs structural validation and, when that passes,
// checks that every default encodes under its field's grammar.
func validatePackage(pkg *schema.Package, formatter *OutputFormatter) []schema.ValidationError {
	errs := schema.Validate(pkg)
	if len(errs) > 0 {
		return errs
	}

	for _, rec := range pkg.Records() {
		formatter.VerboseLog("Checking defaults: %s", schema.Describe(rec))
		for _, f := range rec.Fields {
			if !f.HasDefault {
				continue
			}
			if _, err := grammar.EncodeDefault(f); err != nil {
				ve := schema.ValidationError{
					Field:   rec.Name + "." + f.Name,
					Message: err.Error(),
					Code:    ErrCodeGeneric,
				}
				if ce, ok := grammar.AsConfigError(err); ok {
					ve.Message = ce.Message
					ve.Code = ce.Code
				}
				errs = append(errs, ve)
			}
		}
	}
	return errs
}

// ValidateSchemas validates the schemas at path.
// This is a helper function for external callers.
func ValidateSchemas(path string) ([]schema.ValidationError, error) {
	loaded, err := LoadSchemas(path)
	if err != nil {
		return nil, err
	}
	return validatePackage(loaded.Package, &OutputFormatter{Format: "text"}), nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d type(s) valid\n", len(result.Types))
	writeRecursion(formatter, result.Recursion)
	return nil
}

// outputValidationErrors outputs every validation error. Invalid schemas
// are failures (exit code 1), not command errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}
	writeRecursion(formatter, result.Recursion)

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func writeRecursion(formatter *OutputFormatter, reports []schema.RecursionReport) {
	for _, r := range reports {
		if r.Level != "warning" && !formatter.Verbose {
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", r.Level, r.Message)
	}
}
