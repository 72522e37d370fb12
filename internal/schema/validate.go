package schema

import (
	"fmt"
	"regexp"

	"github.com/roach88/evolve/internal/value"
)

// Validation error codes (E100-E199)
const (
	ErrDuplicateField   = "E101" // two fields share a name
	ErrDuplicateSymbol  = "E102" // two enum symbols share a name
	ErrEmptyEnum        = "E103" // enum without symbols
	ErrInvalidCounter   = "E104" // counter element is not numeric
	ErrWildcardType     = "E105" // any cannot be resolved
	ErrInvalidFixedSize = "E106" // fixed size must be positive
	ErrInvalidName      = "E107" // field or symbol is not an identifier
	ErrNullDefault      = "E108" // null default on a non-nullable field
	ErrMissingType      = "E109" // field without a type
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks every type reachable from the package.
// Returns all errors found (does not fail-fast).
func Validate(pkg *Package) []ValidationError {
	v := &validator{seen: make(map[*Node]bool)}
	for _, name := range pkg.Names {
		v.node(pkg.Types[name], name)
	}
	return v.errs
}

// ValidateNode checks every type reachable from a single root.
func ValidateNode(n *Node) []ValidationError {
	v := &validator{seen: make(map[*Node]bool)}
	v.node(n, Describe(n))
	return v.errs
}

type validator struct {
	seen map[*Node]bool
	errs []ValidationError
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) node(n *Node, path string) {
	if n == nil {
		v.add(path, ErrMissingType, "type is required")
		return
	}
	if v.seen[n] {
		return
	}
	v.seen[n] = true

	switch n.Kind {
	case KindAny:
		v.add(path, ErrWildcardType, "type any cannot take part in resolution")

	case KindFixed:
		if n.Size <= 0 {
			v.add(path, ErrInvalidFixedSize, "fixed size must be positive, got %d", n.Size)
		}

	case KindEnum:
		if len(n.Symbols) == 0 {
			v.add(path, ErrEmptyEnum, "enum must declare at least one symbol")
		}
		seen := make(map[string]bool, len(n.Symbols))
		for _, s := range n.Symbols {
			if seen[s] {
				v.add(path, ErrDuplicateSymbol, "duplicate symbol %q", s)
			}
			seen[s] = true
			if !identPattern.MatchString(s) {
				v.add(path, ErrInvalidName, "symbol %q is not an identifier", s)
			}
		}

	case KindArray, KindMap:
		v.node(n.Elem, path+"."+n.Kind.String())

	case KindCounter:
		if n.Elem == nil || !n.Elem.Kind.IsNumeric() {
			v.add(path, ErrInvalidCounter, "counter must wrap int, long, float or double, got %s", Describe(n.Elem))
			return
		}

	case KindRecord:
		seen := make(map[string]bool, len(n.Fields))
		for _, f := range n.Fields {
			fieldPath := path + "." + f.Name
			if seen[f.Name] {
				v.add(fieldPath, ErrDuplicateField, "duplicate field %q", f.Name)
			}
			seen[f.Name] = true
			if !identPattern.MatchString(f.Name) {
				v.add(fieldPath, ErrInvalidName, "field name %q is not an identifier", f.Name)
			}
			if f.HasDefault && !f.Nullable && value.IsNull(f.Default) {
				v.add(fieldPath, ErrNullDefault, "null default requires a nullable field")
			}
			v.node(f.Type, fieldPath)
		}
	}
}
