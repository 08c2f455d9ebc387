// Package harness runs retrieval scenarios against a fake ledger.
//
// A scenario publishes one file on an in-memory chain, then runs a list of
// steps (get, assemble, clean) against a single working directory and
// provenance database, checking each step's expectations and a final set
// of assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	file:
//	  name: a.txt
//	  content: "hello world"   # or size + seed for generated bytes
//	  chunk_size: 6
//	tamper:
//	  file_hash: "00...00"      # publish a wrong whole-file hash
//	  chunks: { 1: "WORLD" }    # publish other bytes for chunk 1
//	  root_source: [0]          # name the root record as chunk 0's source
//	steps:
//	  - action: get
//	    fail: [1]               # chunk sources unreachable during this step
//	    expect:
//	      status: incomplete
//	      present: 1
//	      missing: [1]
//	assertions:
//	  - type: run_status
//	    run: 1
//	    status: incomplete
//
// Chunks are referred to by their index in the descriptor throughout, so
// traces are stable across runs.
//
// # Assertion Types
//
//   - run_status: the Nth recorded run finished with the given status
//   - ledger_calls: a ledger method was called exactly count times
//   - chunk_sources: count distinct sources delivered chunk N across runs
//
// # Deterministic Testing
//
// Runs use sequential run ids, a fixed clock and an in-memory SQLite
// database, so traces can be compared against golden files.
package harness
