// Package retrieve exposes the two read paths over a singleton chain:
// reading the latest message of a chain, and reconstructing a published
// file from its descriptor and chunks.
//
// Both paths share one lineage.Extractor. File retrieval runs
// descriptor → fetch → canonicalize → reassemble; each stage tolerates the
// failures of the previous one, so an interrupted retrieval can be rerun
// against the same working directory and only fetches what is missing.
package retrieve
