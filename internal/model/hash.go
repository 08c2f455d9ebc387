package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"regexp"
	"strings"
)

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ContentHash returns the lowercase hex SHA-256 of data.
// This is the only identity used for chunks and reconstructed files.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader streams r through SHA-256 and returns the hex digest and the
// number of bytes read.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// NormalizeHash lowercases a hex digest and strips a "0x" prefix.
func NormalizeHash(s string) string {
	return strings.ToLower(SanitizeHex(s))
}

// IsContentHash reports whether s is a normalized SHA-256 hex digest.
func IsContentHash(s string) bool {
	return hashPattern.MatchString(s)
}

// ID derives the coin identifier:
// SHA256(parent_coin_info || puzzle_hash || amount), where amount uses the
// minimal big-endian signed encoding.
func (c Coin) ID() Identifier {
	h := sha256.New()
	h.Write(c.ParentID[:])
	h.Write(c.PuzzleHash[:])
	h.Write(encodeAmount(c.Amount))
	var id Identifier
	copy(id[:], h.Sum(nil))
	return id
}

// encodeAmount renders amount as the shortest big-endian two's complement
// byte string. Zero encodes as the empty string.
func encodeAmount(amount uint64) []byte {
	if amount == 0 {
		return nil
	}
	var buf [9]byte
	binary.BigEndian.PutUint64(buf[1:], amount)
	b := buf[:]
	for len(b) > 1 && b[0] == 0 && b[1]&0x80 == 0 {
		b = b[1:]
	}
	return b
}
