package harness

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evolve/internal/value"
)

const pointV2Schema = `
record: Point: fields: [
	{name: "y", type: "long"},
	{name: "x", type: "double"},
	{name: "z", type: "int", default: 0},
]
`

func pointScenario(t *testing.T, steps ...Step) *Scenario {
	t.Helper()
	dir := t.TempDir()
	return &Scenario{
		Name:        "point_v1_v2",
		Description: "Point gains z",
		Writer:      TypeRef{Schema: createTestSchema(t, dir, "v1.cue", pointSchema), Type: "Point"},
		Reader:      &TypeRef{Schema: createTestSchema(t, dir, "v2.cue", pointV2Schema), Type: "Point"},
		Steps:       steps,
	}
}

func TestRun_Evolution(t *testing.T) {
	scenario := pointScenario(t, Step{
		Name:   "first",
		Write:  map[string]any{"x": 1, "y": 2},
		Expect: map[string]any{"x": 1, "y": 2, "z": 0},
	})
	scenario.Assertions = []Assertion{
		{Type: AssertDeferredErrors, Count: 0},
		{Type: AssertSameReads},
		{Type: AssertFieldOrder, Fields: []string{"x", "y", "z"}},
		{Type: AssertGrammarContains, Text: "resolve int -> double"},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.Grammar)

	require.Len(t, result.Steps, 1)
	step := result.Steps[0]
	assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 2}, step.Input)
	assert.Len(t, step.Reads, 2)
	assert.Equal(t, step.WriterReads, step.Reads)
	assert.True(t, value.Equal(value.NewRecord(
		value.F("x", value.Double(1)),
		value.F("y", value.Long(2)),
		value.F("z", value.Int(0)),
	), step.Output), "output = %#v", step.Output)
}

func TestRun_Neutral(t *testing.T) {
	scenario := pointScenario(t, Step{Write: map[string]any{"x": 5, "y": 6}})
	scenario.Reader = nil
	scenario.Assertions = []Assertion{{Type: AssertSameReads}, {Type: AssertDeferredErrors}}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "step[0]", result.Steps[0].Name, "unnamed steps are numbered")
}

func TestRun_ExpectMismatch(t *testing.T) {
	scenario := pointScenario(t, Step{
		Name:   "wrong",
		Write:  map[string]any{"x": 1, "y": 2},
		Expect: map[string]any{"x": 3},
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step wrong")
	assert.Contains(t, result.Errors[0], "$.x")
}

func TestRun_ExpectErrorButDecoded(t *testing.T) {
	scenario := pointScenario(t, Step{
		Name:        "fine",
		Write:       map[string]any{"x": 1, "y": 2},
		ExpectError: "anything",
	})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "decode succeeded")
}

func TestRun_DeferredErrorSurfacesAtDecode(t *testing.T) {
	dir := t.TempDir()
	scenario := &Scenario{
		Name:        "required",
		Description: "reader requires w",
		Writer:      TypeRef{Schema: createTestSchema(t, dir, "v1.cue", pointSchema), Type: "Point"},
		Reader: &TypeRef{Schema: createTestSchema(t, dir, "v2.cue", `
record: Point: fields: [
	{name: "x", type: "int"},
	{name: "w", type: "int"},
]
`), Type: "Point"},
		Steps: []Step{{Name: "any", Write: map[string]any{"x": 1, "y": 2}, ExpectError: "missing required field w"}},
		Assertions: []Assertion{{Type: AssertDeferredErrors, Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Deferred)
	assert.Nil(t, result.Steps[0].Output)
	assert.Contains(t, result.Steps[0].Error, "missing required field w")
}

func TestRun_ConfigError(t *testing.T) {
	dir := t.TempDir()
	badReader := createTestSchema(t, dir, "v2.cue", `
record: Point: fields: [
	{name: "x", type: "int"},
	{name: "y", type: "int"},
	{name: "c", type: "Color", default: "PURPLE"},
]
enum: Color: values: ["RED"]
`)
	base := func() *Scenario {
		return &Scenario{
			Name:        "bad_default",
			Description: "unknown enum default",
			Writer:      TypeRef{Schema: createTestSchema(t, dir, "v1.cue", pointSchema), Type: "Point"},
			Reader:      &TypeRef{Schema: badReader, Type: "Point"},
		}
	}

	t.Run("expected", func(t *testing.T) {
		scenario := base()
		scenario.ExpectConfigError = "E204"
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, "errors: %v", result.Errors)
		assert.Equal(t, "E204", result.ConfigError)
		assert.Empty(t, result.Grammar)
	})

	t.Run("wrong code", func(t *testing.T) {
		scenario := base()
		scenario.ExpectConfigError = "E205"
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Contains(t, result.Errors[0], "expected config error E205")
	})

	t.Run("unexpected", func(t *testing.T) {
		scenario := base()
		scenario.Steps = []Step{{Write: map[string]any{"x": 1, "y": 2}}}
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Contains(t, result.Errors[0], "resolve failed")
	})
}

func TestRun_ExpectedConfigErrorButResolved(t *testing.T) {
	scenario := pointScenario(t)
	scenario.ExpectConfigError = "E204"

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "resolve succeeded")
	assert.NotEmpty(t, result.Grammar)
}

func TestRun_InfrastructureErrors(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		scenario := pointScenario(t)
		scenario.Writer.Type = "Nope"
		_, err := Run(scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "type Nope not declared")
	})

	t.Run("schema does not compile", func(t *testing.T) {
		scenario := pointScenario(t)
		scenario.Reader.Schema = createTestSchema(t, t.TempDir(), "broken.cue", `record: P: fields: [{name: "a", type: "nope"}]`)
		_, err := Run(scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reader")
	})

	t.Run("schema does not validate", func(t *testing.T) {
		scenario := pointScenario(t)
		scenario.Reader.Schema = createTestSchema(t, t.TempDir(), "dup.cue", `
record: Point: fields: [
	{name: "x", type: "int"},
	{name: "x", type: "int"},
]
`)
		_, err := Run(scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "E101")
	})

	t.Run("value does not fit writer", func(t *testing.T) {
		scenario := pointScenario(t, Step{Name: "bad", Write: map[string]any{"x": "one", "y": 2}})
		_, err := Run(scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step bad")
	})
}

func TestHarness_LogsSteps(t *testing.T) {
	var buf bytes.Buffer
	h := New(zerolog.New(&buf).Level(zerolog.DebugLevel))

	result, err := h.Run(pointScenario(t, Step{Name: "logged", Write: map[string]any{"x": 1, "y": 2}}))
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Contains(t, buf.String(), `"step":"logged"`)
	assert.Contains(t, buf.String(), `"message":"scenario completed"`)
}
