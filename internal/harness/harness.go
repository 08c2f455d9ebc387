package harness

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/roach88/chainfile/internal/descriptor"
	"github.com/roach88/chainfile/internal/model"
	"github.com/roach88/chainfile/internal/retrieve"
	"github.com/roach88/chainfile/internal/store"
	"github.com/roach88/chainfile/internal/testutil"
)

// Step statuses beyond the recorded run statuses.
const (
	StatusInvalidDescriptor = "invalid_descriptor"
	StatusError             = "error"
	StatusCleaned           = "cleaned"
)

// errUnreachable is returned for sources listed in a step's fail list.
var errUnreachable = errors.New("source unreachable")

// runClock is the time stamped on every recorded run.
var runClock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness is the scenario execution state: one fake chain, one working
// directory and one provenance database shared by every step.
type Harness struct {
	scenario *Scenario
	chain    *testutil.FakeChain
	store    *store.Store
	workDir  string
	outDir   string
	logger   *slog.Logger

	content    []byte
	root       model.Identifier
	descriptor *model.FileDescriptor
	sources    []model.Identifier
	byHash     map[string]int
	bySource   map[model.Identifier]int
}

// Run executes a scenario in dir and returns the result.
//
// Execution flow:
// 1. Create an in-memory provenance database
// 2. Publish the scenario file on a fresh fake chain
// 3. Execute steps with expect validation
// 4. Evaluate assertions
func Run(scenario *Scenario, dir string) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithRunIDs(testutil.NewSequenceRunIDs()),
		store.WithClock(func() time.Time { return runClock }))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario: scenario,
		chain:    testutil.NewFakeChain(),
		store:    st,
		workDir:  filepath.Join(dir, "work"),
		outDir:   filepath.Join(dir, "out"),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		byHash:   make(map[string]int),
		bySource: make(map[model.Identifier]int),
	}
	if err := h.publish(); err != nil {
		return nil, fmt.Errorf("failed to publish file: %w", err)
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		event, err := h.executeStep(ctx, i+1, step)
		if err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i+1, err)
		}
		result.Trace = append(result.Trace, event)
		if step.Expect != nil {
			for _, msg := range h.checkExpect(event, step.Expect) {
				result.AddError(fmt.Sprintf("step %d: %s", i+1, msg))
			}
		}
	}

	for _, err := range h.evaluateAssertions(ctx, scenario.Assertions) {
		result.AddError(err.Error())
	}
	return result, nil
}

// publish lays the file out on the chain: one chain per chunk, then the
// descriptor as the spend of the root record.
func (h *Harness) publish() error {
	f := h.scenario.File
	h.content = f.bytes()

	tamper := h.scenario.Tamper
	if tamper == nil {
		tamper = &Tamper{}
	}
	onRoot := make(map[int]bool, len(tamper.RootSource))
	for _, idx := range tamper.RootSource {
		onRoot[idx] = true
	}

	root := h.chain.Mint()
	d := &model.FileDescriptor{
		Filename:  f.Name,
		Hash:      model.ContentHash(h.content),
		MediaType: f.MediaType,
	}
	for i, off := 0, 0; off < len(h.content); i, off = i+1, off+f.ChunkSize {
		chunk := h.content[off:min(off+f.ChunkSize, len(h.content))]
		published := chunk
		if alt, ok := tamper.Chunks[i]; ok {
			published = []byte(alt)
		}

		source := root
		if !onRoot[i] {
			source = h.chain.Publish(published)[0]
			h.bySource[source] = i
		}
		hash := model.ContentHash(chunk)
		if _, dup := h.byHash[hash]; dup {
			return fmt.Errorf("chunk %d repeats an earlier chunk", i)
		}
		h.byHash[hash] = i
		h.sources = append(h.sources, source)
		d.HashChunks = append(d.HashChunks, model.ChunkRef{Hash: hash, Source: source})
	}
	if tamper.FileHash != "" {
		d.Hash = model.NormalizeHash(tamper.FileHash)
	}

	msg, err := descriptor.Marshal(d)
	if err != nil {
		return err
	}
	h.chain.SpendMessage(root, msg)
	h.root = root

	// Keep the descriptor as a retriever reads it back.
	h.descriptor, err = descriptor.Parse(msg)
	return err
}

func (h *Harness) executeStep(ctx context.Context, n int, step Step) (TraceEvent, error) {
	event := TraceEvent{Step: n, Action: step.Action, Required: len(h.descriptor.HashChunks)}

	for _, idx := range step.Fail {
		h.chain.FailOn(h.sources[idx], errUnreachable)
	}
	defer func() {
		for _, idx := range step.Fail {
			h.chain.FailOn(h.sources[idx], nil)
		}
	}()

	svc, err := retrieve.New(h.chain, retrieve.Options{
		Chain:       "chia",
		WorkDir:     h.workDir,
		OutputDir:   h.outDir,
		Concurrency: h.scenario.Concurrency,
		Refetch:     step.Refetch,
		Logger:      h.logger,
		Recorder:    h.store,
	})
	if err != nil {
		return event, err
	}

	switch step.Action {
	case ActionClean:
		if err := svc.Chunks().Clean(); err != nil {
			return event, err
		}
		event.Status = StatusCleaned
	case ActionAssemble:
		res, err := svc.Assemble(h.descriptor)
		h.describe(&event, res, err)
	case ActionGet:
		res, err := svc.RetrieveFile(ctx, h.root, "")
		h.describe(&event, res, err)
	}
	return event, nil
}

// describe fills event from a retrieval outcome, naming chunks by index.
func (h *Harness) describe(event *TraceEvent, res *retrieve.Result, err error) {
	switch {
	case res == nil && descriptor.IsInvalidDescriptor(err):
		event.Status = StatusInvalidDescriptor
		return
	case res == nil:
		event.Status = StatusError
		return
	case res.Complete:
		event.Status = store.StatusComplete
	case res.Assembly != nil:
		event.Status = store.StatusMismatch
	default:
		event.Status = store.StatusIncomplete
	}

	event.Present = res.Present
	event.Required = res.Required
	event.RunID = res.RunID
	for _, hash := range res.Missing {
		event.Missing = append(event.Missing, h.byHash[hash])
	}
	if res.Fetch == nil {
		return
	}
	for _, c := range res.Fetch.Retrieved {
		event.Retrieved = append(event.Retrieved, h.bySource[c.Source])
	}
	for _, s := range res.Fetch.Skipped {
		event.Skipped = append(event.Skipped, h.byHash[s.Hash])
	}
	for _, f := range res.Fetch.Failures {
		event.Failed = append(event.Failed, h.byHash[f.Hash])
	}
	for _, m := range res.Fetch.Mismatches {
		event.Corrupt = append(event.Corrupt, h.byHash[m.Expected])
	}
}

// bytes returns the file content: Content verbatim, or Size bytes of a
// SHA-256 chain seeded with Seed.
func (f FileSpec) bytes() []byte {
	if f.Content != "" {
		return []byte(f.Content)
	}
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], f.Seed)
	block := sha256.Sum256(seed[:])

	out := make([]byte, 0, f.Size+len(block))
	for len(out) < f.Size {
		out = append(out, block[:]...)
		block = sha256.Sum256(block[:])
	}
	return out[:f.Size]
}
