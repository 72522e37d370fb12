package harness

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/evolve/internal/codec"
	"github.com/roach88/evolve/internal/grammar"
	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/symbol"
	"github.com/roach88/evolve/internal/value"
)

// Harness is the scenario execution engine.
type Harness struct {
	compiler *grammar.Compiler
	logger   zerolog.Logger
}

// New creates a harness whose compiler and step logs go to logger.
func New(logger zerolog.Logger) *Harness {
	return &Harness{
		compiler: grammar.NewCompiler(logger),
		logger:   logger,
	}
}

// Run executes a scenario with logging disabled.
func Run(scenario *Scenario) (*Result, error) {
	return New(zerolog.Nop()).Run(scenario)
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Compile the writer and reader schema files
// 2. Resolve the pair into a grammar (or check the expected config error)
// 3. Encode each step with the writer and decode it through the grammar
// 4. Evaluate assertions
//
// Scenario failures are reported in the result. The returned error is
// reserved for scenarios that cannot run: unreadable schemas, unknown
// types, or step values the writer schema cannot encode.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	loader := &schemaLoader{pkgs: make(map[string]*schema.Package)}

	writer, err := loader.load(scenario.Writer)
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}
	reader := writer
	if scenario.Reader != nil {
		if reader, err = loader.load(*scenario.Reader); err != nil {
			return nil, fmt.Errorf("reader: %w", err)
		}
	}

	result := NewResult()
	g, err := h.compiler.Resolve(writer, reader)
	if err != nil {
		ce, ok := grammar.AsConfigError(err)
		if !ok {
			return nil, fmt.Errorf("resolve %s -> %s: %w", schema.Describe(writer), schema.Describe(reader), err)
		}
		result.ConfigError = ce.Code
		switch {
		case scenario.ExpectConfigError == "":
			result.AddError(fmt.Sprintf("resolve failed: %v", err))
		case ce.Code != scenario.ExpectConfigError:
			result.AddError(fmt.Sprintf("expected config error %s, got %v", scenario.ExpectConfigError, err))
		}
		return result, nil
	}

	result.Grammar = symbol.Dump(g)
	result.Deferred = len(symbol.Errors(g))
	if scenario.ExpectConfigError != "" {
		result.AddError(fmt.Sprintf("expected config error %s, resolve succeeded", scenario.ExpectConfigError))
		return result, nil
	}

	base, err := h.compiler.Generate(writer)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", schema.Describe(writer), err)
	}

	for i, step := range scenario.Steps {
		if step.Name == "" {
			step.Name = fmt.Sprintf("step[%d]", i)
		}
		sr, err := h.runStep(writer, g, base, step, result)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", step.Name, err)
		}
		result.Steps = append(result.Steps, sr)
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	h.logger.Debug().
		Str("scenario", scenario.Name).
		Int("steps", len(result.Steps)).
		Bool("pass", result.Pass).
		Msg("scenario completed")

	return result, nil
}

// runStep encodes one step value and decodes it through both the
// resolved grammar and the writer's own grammar.
func (h *Harness) runStep(writer *schema.Node, g, base symbol.Symbol, step Step, result *Result) (StepResult, error) {
	in, err := value.FromAny(step.Write)
	if err != nil {
		return StepResult{}, fmt.Errorf("convert write value: %w", err)
	}
	data, err := codec.Encode(writer, in)
	if err != nil {
		return StepResult{}, err
	}

	var writerTrace codec.Trace
	if _, err := codec.Decode(base, data, codec.WithTrace(&writerTrace)); err != nil {
		return StepResult{}, fmt.Errorf("writer grammar rejected its own encoding: %w", err)
	}

	var trace codec.Trace
	out, decodeErr := codec.Decode(g, data, codec.WithTrace(&trace))

	sr := StepResult{
		Name:        step.Name,
		Input:       data,
		Reads:       trace.Input(),
		WriterReads: writerTrace.Input(),
	}

	if decodeErr != nil {
		sr.Error = decodeErr.Error()
		switch {
		case step.ExpectError == "":
			result.AddError(fmt.Sprintf("step %s: decode failed: %v", step.Name, decodeErr))
		case !strings.Contains(sr.Error, step.ExpectError):
			result.AddError(fmt.Sprintf("step %s: expected error containing %q, got %q", step.Name, step.ExpectError, sr.Error))
		}
		h.logger.Debug().Str("step", step.Name).Err(decodeErr).Msg("step failed to decode")
		return sr, nil
	}

	sr.Output = out
	if step.ExpectError != "" {
		result.AddError(fmt.Sprintf("step %s: expected error containing %q, decode succeeded", step.Name, step.ExpectError))
	}
	if step.Expect != nil {
		expected, err := value.FromAny(step.Expect)
		if err != nil {
			return StepResult{}, fmt.Errorf("convert expect value: %w", err)
		}
		if mismatch := matchValue(expected, out, "$"); mismatch != "" {
			result.AddError(fmt.Sprintf("step %s: %s", step.Name, mismatch))
		}
	}

	h.logger.Debug().
		Str("step", step.Name).
		Int("bytes", len(data)).
		Int("reads", len(sr.Reads)).
		Msg("step decoded")
	return sr, nil
}

// schemaLoader compiles each schema file once per run.
type schemaLoader struct {
	pkgs map[string]*schema.Package
}

func (l *schemaLoader) load(ref TypeRef) (*schema.Node, error) {
	pkg, ok := l.pkgs[ref.Schema]
	if !ok {
		var err error
		pkg, err = schema.CompileFile(ref.Schema)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", ref.Schema, err)
		}
		if errs := schema.Validate(pkg); len(errs) > 0 {
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return nil, fmt.Errorf("validate %s: %s", ref.Schema, strings.Join(msgs, "; "))
		}
		l.pkgs[ref.Schema] = pkg
	}

	n, ok := pkg.Lookup(ref.Type)
	if !ok {
		return nil, fmt.Errorf("type %s not declared in %s", ref.Type, ref.Schema)
	}
	return n, nil
}
