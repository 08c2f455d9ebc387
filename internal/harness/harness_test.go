package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func helloScenario(steps ...Step) *Scenario {
	return &Scenario{
		Name:        "hello",
		Description: "hello world in two chunks",
		File:        FileSpec{Name: "a.txt", Content: "hello world", ChunkSize: 6},
		Steps:       steps,
	}
}

func intPtr(n int) *int { return &n }

func TestRunReportsFailedExpectation(t *testing.T) {
	s := helloScenario(Step{Action: ActionGet, Expect: &Expect{Status: "incomplete", Present: intPtr(1)}})

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `expected status "incomplete", got "complete"`)
	assert.Contains(t, result.Errors[1], "expected 1 chunks present, got 2")
}

func TestRunReportsFailedAssertion(t *testing.T) {
	s := helloScenario(Step{Action: ActionGet})
	s.Assertions = []Assertion{
		{Type: AssertRunStatus, Run: 1, Status: "mismatch"},
		{Type: AssertRunStatus, Run: 2, Status: "complete"},
		{Type: AssertLedgerCalls, Method: "SpendSolution", Count: 1},
		{Type: AssertChunkSources, Chunk: 5, Count: 1},
	}

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "run-0001 complete")
	assert.Contains(t, result.Errors[1], "run-0002")
	assert.Contains(t, result.Errors[2], "SpendSolution")
	assert.Contains(t, result.Errors[3], "chunk index")
}

func TestRunContentCheck(t *testing.T) {
	s := helloScenario(
		Step{Action: ActionGet, Fail: []int{0}, Expect: &Expect{Status: "incomplete", Content: true}},
	)

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "output file")
}

func TestRunRejectsRepeatedChunks(t *testing.T) {
	s := helloScenario(Step{Action: ActionGet})
	s.File.Content = "abab"
	s.File.ChunkSize = 2

	_, err := Run(s, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repeats")
}

func TestGeneratedContentIsDeterministic(t *testing.T) {
	f := FileSpec{Size: 100, Seed: 3}
	a, b := f.bytes(), f.bytes()
	assert.Len(t, a, 100)
	assert.Equal(t, a, b)

	f.Seed = 4
	assert.NotEqual(t, a, f.bytes())
}
