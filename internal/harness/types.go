package harness

import (
	"github.com/roach88/evolve/internal/codec"
	"github.com/roach88/evolve/internal/value"
)

// StepResult is the outcome of one encode/decode round.
type StepResult struct {
	Name string `json:"name"`

	// Input is the writer encoding of the step value.
	Input []byte `json:"input"`

	// Output is the decoded value; nil when decoding failed.
	Output value.Value `json:"-"`

	// Error is the decode error message, if any.
	Error string `json:"error,omitempty"`

	// Reads are the input reads the resolved grammar took.
	Reads []codec.Read `json:"reads"`

	// WriterReads are the reads the writer's own grammar took over Input.
	WriterReads []codec.Read `json:"writer_reads"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Grammar is the dump of the resolved grammar. Empty when
	// construction failed.
	Grammar string `json:"grammar"`

	// ConfigError is the construction error code, if any.
	ConfigError string `json:"config_error,omitempty"`

	// Deferred is the number of error symbols embedded in the grammar.
	Deferred int `json:"deferred"`

	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
