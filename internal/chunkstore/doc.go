// Package chunkstore is the on-disk chunk store of a retrieval working
// directory.
//
// Layout:
//
//	<workdir>/pending/<identifier>.chunk   bytes as fetched, keyed by source
//	<workdir>/chunks/<sha256>.chunk        bytes keyed by their own hash
//
// Fetchers write to pending. Canonicalize hashes every pending file and
// moves it under its content hash; Reassemble concatenates canonical chunks
// in descriptor order and verifies the whole-file hash. The two key spaces
// live in separate directories so an identifier can never shadow a hash.
//
// All writes go through a uniquely named temp file and a rename, so readers
// never observe a partial chunk or output file. Nothing here deletes chunks
// on its own; Clean exists for callers that want a fresh directory.
package chunkstore
