package harness

import (
	"encoding/hex"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/evolve/internal/value"
)

// Snapshot converts a result into the value written to golden files.
// Inputs are hex encoded; outputs are the decoded values.
func Snapshot(scenarioName string, result *Result) value.Object {
	steps := make(value.Array, len(result.Steps))
	for i, step := range result.Steps {
		s := value.Object{
			"name":  value.String(step.Name),
			"input": value.String(hex.EncodeToString(step.Input)),
			"reads": value.Long(len(step.Reads)),
		}
		if step.Output != nil {
			s["output"] = step.Output
		}
		if step.Error != "" {
			s["error"] = value.String(step.Error)
		}
		steps[i] = s
	}

	snap := value.Object{
		"scenario_name": value.String(scenarioName),
		"grammar":       value.String(result.Grammar),
		"deferred":      value.Long(result.Deferred),
		"steps":         steps,
	}
	if result.ConfigError != "" {
		snap["config_error"] = value.String(result.ConfigError)
	}
	return snap
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	doc, err := value.MarshalCanonical(Snapshot(scenarioName, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, doc)

	return nil
}
