package harness

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/evolve/internal/codec"
	"github.com/roach88/evolve/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Grammar  string // Grammar dump for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Grammar != "" {
		fmt.Fprintf(&buf, "\nGrammar:\n")
		for _, line := range strings.Split(strings.TrimRight(e.Grammar, "\n"), "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}

	return buf.String()
}

// assertGrammarContains checks the grammar dump for a substring.
func assertGrammarContains(result *Result, assertion Assertion) error {
	if strings.Contains(result.Grammar, assertion.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertGrammarContains,
		Expected: fmt.Sprintf("grammar containing %q", assertion.Text),
		Actual:   "not found",
		Grammar:  result.Grammar,
	}
}

// assertDeferredErrors checks the number of error symbols in the grammar.
func assertDeferredErrors(result *Result, assertion Assertion) error {
	if result.Deferred == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertDeferredErrors,
		Expected: fmt.Sprintf("%d deferred errors", assertion.Count),
		Actual:   fmt.Sprintf("%d deferred errors", result.Deferred),
		Grammar:  result.Grammar,
	}
}

// assertSameReads checks that every successfully decoded step consumed
// the input exactly as the writer's own grammar does.
func assertSameReads(result *Result) error {
	for _, step := range result.Steps {
		if step.Error != "" {
			continue
		}
		if !readsEqual(step.Reads, step.WriterReads) {
			return &AssertionError{
				Type:     AssertSameReads,
				Expected: fmt.Sprintf("step %s reads %s", step.Name, formatReads(step.WriterReads)),
				Actual:   formatReads(step.Reads),
				Grammar:  result.Grammar,
			}
		}
	}
	return nil
}

// assertFieldOrder checks the field order of every decoded record.
func assertFieldOrder(result *Result, assertion Assertion) error {
	want := strings.Join(assertion.Fields, ",")
	for _, step := range result.Steps {
		if step.Output == nil {
			continue
		}
		rec, ok := step.Output.(value.Record)
		if !ok {
			return &AssertionError{
				Type:     AssertFieldOrder,
				Expected: fmt.Sprintf("step %s decodes to a record", step.Name),
				Actual:   fmt.Sprintf("%T", step.Output),
			}
		}
		if got := strings.Join(rec.Names(), ","); got != want {
			return &AssertionError{
				Type:     AssertFieldOrder,
				Expected: fmt.Sprintf("step %s fields [%s]", step.Name, want),
				Actual:   fmt.Sprintf("[%s]", got),
				Grammar:  result.Grammar,
			}
		}
	}
	return nil
}

func readsEqual(a, b []codec.Read) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatReads(reads []codec.Read) string {
	parts := make([]string, len(reads))
	for i, r := range reads {
		parts[i] = fmt.Sprintf("%s@%d+%d", r.Kind, r.Offset, r.Len)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// matchValue compares an expected YAML-derived value against a decoded
// one with subset semantics. It returns a description of the first
// mismatch, or "" when the values match.
//
// Objects match records and objects when every expected key matches;
// extra actual fields are ignored. Numbers match by value across widths.
// Strings match strings, enum symbols, raw bytes, and 16-byte UUIDs.
func matchValue(expected, actual value.Value, path string) string {
	mismatch := func() string {
		return fmt.Sprintf("%s: expected %s, got %s", path, describeValue(expected), describeValue(actual))
	}

	switch exp := expected.(type) {
	case nil, value.Null:
		if value.IsNull(actual) {
			return ""
		}
		return mismatch()

	case value.Bool:
		if act, ok := actual.(value.Bool); ok && act == exp {
			return ""
		}
		return mismatch()

	case value.Int, value.Long, value.Float, value.Double:
		want, _ := value.AsFloat64(exp)
		got, ok := value.AsFloat64(actual)
		if ok && numbersEqual(want, got, actual) {
			return ""
		}
		return mismatch()

	case value.String:
		if stringMatches(string(exp), actual) {
			return ""
		}
		return mismatch()

	case value.Array:
		act, ok := actual.(value.Array)
		if !ok || len(act) != len(exp) {
			return mismatch()
		}
		for i := range exp {
			if m := matchValue(exp[i], act[i], fmt.Sprintf("%s[%d]", path, i)); m != "" {
				return m
			}
		}
		return ""

	case value.Object:
		switch actual.(type) {
		case value.Record, value.Object:
		default:
			return mismatch()
		}
		for _, key := range exp.SortedKeys() {
			act, ok := value.Lookup(actual, key)
			if !ok {
				return fmt.Sprintf("%s.%s: expected %s, field missing", path, key, describeValue(exp[key]))
			}
			if m := matchValue(exp[key], act, path+"."+key); m != "" {
				return m
			}
		}
		return ""

	default:
		if value.Equal(expected, actual) {
			return ""
		}
		return mismatch()
	}
}

// numbersEqual compares at the precision of the decoded value, so a
// YAML 0.1 matches a decoded float 0.1.
func numbersEqual(want, got float64, actual value.Value) bool {
	if _, single := actual.(value.Float); single {
		return float32(want) == float32(got)
	}
	return want == got || (math.IsNaN(want) && math.IsNaN(got))
}

func stringMatches(want string, actual value.Value) bool {
	switch act := actual.(type) {
	case value.String:
		return string(act) == want
	case value.Enum:
		return act.Symbol == want
	case value.Bytes:
		if string(act) == want {
			return true
		}
		if len(act) == 16 {
			if u, err := uuid.Parse(want); err == nil {
				return bytes.Equal(act, u[:])
			}
		}
	}
	return false
}

func describeValue(v value.Value) string {
	if v == nil {
		return "nothing"
	}
	if doc, err := value.MarshalCanonical(v); err == nil {
		return fmt.Sprintf("%s (%T)", doc, v)
	}
	return fmt.Sprintf("%v (%T)", v, v)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertGrammarContains:
			err = assertGrammarContains(result, assertion)
		case AssertDeferredErrors:
			err = assertDeferredErrors(result, assertion)
		case AssertSameReads:
			err = assertSameReads(result)
		case AssertFieldOrder:
			err = assertFieldOrder(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
