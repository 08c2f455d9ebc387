package model

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// IdentifierSize is the byte length of record identifiers and puzzle hashes.
const IdentifierSize = 32

// Identifier is a fixed-length ledger token.
type Identifier [IdentifierSize]byte

// ParseIdentifier decodes a hex identifier, with or without a "0x" prefix.
func ParseIdentifier(s string) (Identifier, error) {
	var id Identifier
	raw := SanitizeHex(s)
	if len(raw) != IdentifierSize*2 {
		return id, fmt.Errorf("identifier %q: want %d hex characters, got %d", s, IdentifierSize*2, len(raw))
	}
	if _, err := hex.Decode(id[:], []byte(raw)); err != nil {
		return id, fmt.Errorf("identifier %q: %w", s, err)
	}
	return id, nil
}

// MustParseIdentifier is like ParseIdentifier but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// SanitizeHex strips surrounding space and a leading "0x".
func SanitizeHex(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	return s
}

// String renders the identifier as lowercase hex without prefix.
func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// Hex renders the identifier with the "0x" prefix nodes expect on the wire.
func (id Identifier) Hex() string {
	return "0x" + id.String()
}

// IsZero reports whether the identifier is unset.
func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

// MarshalJSON encodes the identifier as a 0x-prefixed hex string.
func (id Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Hex())
}

// UnmarshalJSON accepts hex with or without the 0x prefix.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseIdentifier(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
