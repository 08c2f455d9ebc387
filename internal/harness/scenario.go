package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a retrieval scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// File is the file published on the fake chain.
	File FileSpec `yaml:"file"`

	// Tamper alters what is published, to exercise failure paths.
	Tamper *Tamper `yaml:"tamper,omitempty"`

	// Concurrency is the fetch worker limit. Zero uses the default.
	Concurrency int `yaml:"concurrency,omitempty"`

	// Steps run in order against one working directory.
	Steps []Step `yaml:"steps"`

	// Assertions validate provenance and ledger usage after all steps.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// FileSpec describes the published file. Either Content or Size is set.
type FileSpec struct {
	Name      string `yaml:"name"`
	Content   string `yaml:"content,omitempty"`
	Size      int    `yaml:"size,omitempty"`
	Seed      uint64 `yaml:"seed,omitempty"`
	ChunkSize int    `yaml:"chunk_size"`
	MediaType string `yaml:"media_type,omitempty"`
}

// Tamper lists deliberate faults in the published data.
type Tamper struct {
	// FileHash replaces the whole-file hash in the descriptor.
	FileHash string `yaml:"file_hash,omitempty"`

	// Chunks maps a chunk index to the bytes actually published for it.
	// The descriptor keeps the genuine hash.
	Chunks map[int]string `yaml:"chunks,omitempty"`

	// RootSource names the root record as the source of these chunks.
	RootSource []int `yaml:"root_source,omitempty"`
}

// Step is one action against the working directory.
type Step struct {
	// Action is one of get, assemble, clean.
	Action string `yaml:"action"`

	// Fail lists chunk indexes whose sources are unreachable for this step.
	Fail []int `yaml:"fail,omitempty"`

	// Refetch fetches chunks even when already canonical.
	Refetch bool `yaml:"refetch,omitempty"`

	// Expect is checked against the step's outcome when set.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies a step's expected outcome.
type Expect struct {
	// Status is complete, incomplete, mismatch, invalid_descriptor,
	// error or cleaned.
	Status string `yaml:"status"`

	// Present is the expected number of canonical chunks.
	Present *int `yaml:"present,omitempty"`

	// Missing lists the chunk indexes expected to be absent.
	Missing []int `yaml:"missing,omitempty"`

	// Content requires the output file to equal the published file.
	Content bool `yaml:"content,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "run_status": run Run (1-based) has Status
	// - "ledger_calls": Method was called Count times
	// - "chunk_sources": chunk Chunk has Count distinct recorded sources
	Type string `yaml:"type"`

	Run    int    `yaml:"run,omitempty"`
	Status string `yaml:"status,omitempty"`
	Method string `yaml:"method,omitempty"`
	Chunk  int    `yaml:"chunk,omitempty"`
	Count  int    `yaml:"count,omitempty"`
}

// Step actions.
const (
	ActionGet      = "get"
	ActionAssemble = "assemble"
	ActionClean    = "clean"
)

// Assertion type constants.
const (
	AssertRunStatus    = "run_status"
	AssertLedgerCalls  = "ledger_calls"
	AssertChunkSources = "chunk_sources"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.File.Name == "" {
		return fmt.Errorf("file.name is required")
	}
	if (s.File.Content == "") == (s.File.Size == 0) {
		return fmt.Errorf("file needs exactly one of content or size")
	}
	if s.File.ChunkSize < 1 {
		return fmt.Errorf("file.chunk_size must be positive")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	chunks := s.chunkCount()
	for i, step := range s.Steps {
		switch step.Action {
		case ActionGet, ActionAssemble, ActionClean:
		default:
			return fmt.Errorf("step %d: unknown action %q", i+1, step.Action)
		}
		for _, idx := range step.Fail {
			if idx < 0 || idx >= chunks {
				return fmt.Errorf("step %d: fail index %d out of range", i+1, idx)
			}
		}
	}
	if s.Tamper != nil {
		for idx := range s.Tamper.Chunks {
			if idx < 0 || idx >= chunks {
				return fmt.Errorf("tamper: chunk index %d out of range", idx)
			}
		}
		for _, idx := range s.Tamper.RootSource {
			if idx < 0 || idx >= chunks {
				return fmt.Errorf("tamper: root_source index %d out of range", idx)
			}
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertRunStatus, AssertLedgerCalls, AssertChunkSources:
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i+1, a.Type)
		}
	}
	return nil
}

func (s *Scenario) chunkCount() int {
	size := len(s.File.Content)
	if size == 0 {
		size = s.File.Size
	}
	return (size + s.File.ChunkSize - 1) / s.File.ChunkSize
}
