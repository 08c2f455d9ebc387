package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario in a temporary directory and compares
// its trace against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, t.TempDir())
	if err != nil {
		return nil, err
	}

	traceJSON, err := MarshalTrace(result.Trace)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}

// MarshalTrace renders a trace as indented JSON with a trailing newline.
func MarshalTrace(trace []TraceEvent) ([]byte, error) {
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
