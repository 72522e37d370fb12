package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/evolve/internal/schema"
)

// LoadResult contains the schemas loaded from a file or directory.
type LoadResult struct {
	Package *schema.Package
	Files   []string

	// Source is the text of every file joined in load order. It compiles
	// to the same package and is what the registry stores.
	Source string
}

// LoadError represents an error that occurred during schema loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchemas compiles a CUE schema file, or every .cue file under a
// directory unified into one package.
func LoadSchemas(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema path: %v", err)}
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = FindCUEFiles(path); err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	ctx := cuecontext.New()
	var (
		merged  cue.Value
		sources []string
	)
	for i, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", file, err)}
		}
		sources = append(sources, string(src))

		v := ctx.CompileBytes(src, cue.Filename(file))
		if err := v.Err(); err != nil {
			return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
		}
		if i == 0 {
			merged = v
		} else {
			merged = merged.Unify(v)
		}
	}

	pkg, err := schema.Compile(merged)
	if err != nil {
		return nil, convertCompileError(err)
	}

	return &LoadResult{
		Package: pkg,
		Files:   files,
		Source:  strings.Join(sources, "\n"),
	}, nil
}

// Lookup returns a declared type or a LoadError naming the known types.
func (r *LoadResult) Lookup(name string) (*schema.Node, error) {
	if name == "" {
		return nil, &LoadError{Code: ErrCodeTypeNotFound, Message: "type name is required"}
	}
	n, ok := r.Package.Lookup(name)
	if !ok {
		return nil, &LoadError{
			Code:    ErrCodeTypeNotFound,
			Message: fmt.Sprintf("type %q not declared (known: %s)", name, strings.Join(r.Package.Names, ", ")),
		}
	}
	return n, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a schema compile error to a LoadError with
// position info.
func convertCompileError(err error) *LoadError {
	var compileErr *schema.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompileFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeCompileFailed, Message: err.Error()}
}

// loadError reports err through the formatter. Load errors are
// command-level errors (exit code 2).
func loadError(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		var details any
		if loadErr.Pos.IsValid() {
			details = fmt.Sprintf("%s:%d:%d", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		return f.Fail(ExitCommandError, loadErr.Code, loadErr.Message, details)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}

// Error code constants, unified across all CLI commands. Schema
// validation (E1xx) and grammar construction (E2xx) codes pass through
// unchanged.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // File read failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeCompileFailed = "E008" // Schema compile error
	ErrCodeTypeNotFound  = "E009" // Type not declared
	ErrCodeEncodeFailed  = "E010" // Value does not fit the writer schema
	ErrCodeDecodeFailed  = "E011" // Data rejected by the grammar
	ErrCodeRegistry      = "E012" // Registry open/read/write error
	ErrCodeInvalidInput  = "E013" // Unreadable value or data file
)
