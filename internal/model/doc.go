// Package model provides the shared types for chainfile.
//
// This package contains type definitions and identity helpers only. All other
// internal packages import model; model imports nothing internal, so it stays
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Identifiers are 32-byte values rendered as lowercase hex without "0x"
//   - Chunk order is an explicit slice (HashChunks), never a Go map
//   - Content identity is always SHA-256 over the raw bytes
package model
