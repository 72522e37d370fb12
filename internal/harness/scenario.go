package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one schema evolution test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Writer is the type the step values are encoded with.
	Writer TypeRef `yaml:"writer"`

	// Reader is the type the data is decoded as. Nil resolves the
	// writer against itself.
	Reader *TypeRef `yaml:"reader,omitempty"`

	// ExpectConfigError is the construction error code the pair must
	// fail with. Steps are not run when it is set.
	ExpectConfigError string `yaml:"expect_config_error,omitempty"`

	// Steps are encoded and decoded in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the grammar and the decoded steps.
	// Supported types: grammar_contains, deferred_errors, same_reads, field_order
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// TypeRef names a type declared in a CUE schema file.
type TypeRef struct {
	Schema string `yaml:"schema"`
	Type   string `yaml:"type"`
}

func (r TypeRef) String() string {
	return fmt.Sprintf("%s (%s)", r.Type, r.Schema)
}

// Step is one value written with the writer schema and read back.
type Step struct {
	Name string `yaml:"name"`

	// Write is the value to encode, as a YAML tree.
	Write any `yaml:"write"`

	// Expect is matched against the decoded value with subset semantics.
	// If nil, the decoded value is not checked.
	Expect any `yaml:"expect,omitempty"`

	// ExpectError is a substring of the expected decode error.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the resolved grammar or the decoded steps.
type Assertion struct {
	Type string `yaml:"type"`

	// Text is searched for in the grammar dump (grammar_contains).
	Text string `yaml:"text,omitempty"`

	// Count is the expected number of deferred errors (deferred_errors).
	Count int `yaml:"count,omitempty"`

	// Fields is the expected record field order (field_order).
	Fields []string `yaml:"fields,omitempty"`
}

// Assertion type constants.
const (
	AssertGrammarContains = "grammar_contains"
	AssertDeferredErrors  = "deferred_errors"
	AssertSameReads       = "same_reads"
	AssertFieldOrder      = "field_order"
)

// LoadScenario reads and parses a scenario YAML file. Schema paths are
// resolved relative to the directory holding the file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving schema paths relative to basePath.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.Writer.Schema = resolvePath(basePath, scenario.Writer.Schema)
	if scenario.Reader != nil {
		scenario.Reader.Schema = resolvePath(basePath, scenario.Reader.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolvePath(basePath, p string) string {
	if p == "" || filepath.IsAbs(p) || basePath == "" {
		return p
	}
	return filepath.Join(basePath, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if err := validateTypeRef("writer", s.Writer); err != nil {
		return err
	}
	if s.Reader != nil {
		if err := validateTypeRef("reader", *s.Reader); err != nil {
			return err
		}
	}

	if s.ExpectConfigError != "" {
		if len(s.Steps) > 0 {
			return fmt.Errorf("expect_config_error scenarios cannot have steps")
		}
		return nil
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Write == nil {
			return fmt.Errorf("step[%d]: write is required", i)
		}
		if step.Expect != nil && step.ExpectError != "" {
			return fmt.Errorf("step[%d]: expect and expect_error are mutually exclusive", i)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertGrammarContains:
			if a.Text == "" {
				return fmt.Errorf("assertion[%d]: grammar_contains requires text", i)
			}
		case AssertFieldOrder:
			if len(a.Fields) == 0 {
				return fmt.Errorf("assertion[%d]: field_order requires fields", i)
			}
		case AssertDeferredErrors, AssertSameReads:
		case "":
			return fmt.Errorf("assertion[%d]: type is required", i)
		default:
			return fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
	}

	return nil
}

func validateTypeRef(role string, r TypeRef) error {
	if r.Schema == "" {
		return fmt.Errorf("%s.schema is required", role)
	}
	if r.Type == "" {
		return fmt.Errorf("%s.type is required", role)
	}
	if _, err := os.Stat(r.Schema); err != nil {
		return fmt.Errorf("%s schema %s: %w", role, r.Schema, err)
	}
	return nil
}
