package model

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashKnownVectors(t *testing.T) {
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", ContentHash([]byte("hello world")))
	assert.Equal(t, "5e3235a8346e5a4585f8c58562f5052b8fe26a3bb122e1e96c76784964dfc461", ContentHash([]byte("hello ")))
	assert.Len(t, ContentHash(nil), 64, "SHA-256 hex is 64 characters")
}

func TestHashReaderMatchesContentHash(t *testing.T) {
	data := bytes.Repeat([]byte("chunk"), 1000)

	sum, n, err := HashReader(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, ContentHash(data), sum)
	assert.Equal(t, int64(len(data)), n)
}

func TestNormalizeHash(t *testing.T) {
	upper := strings.ToUpper(ContentHash([]byte("x")))

	assert.Equal(t, ContentHash([]byte("x")), NormalizeHash("0x"+upper))
	assert.True(t, IsContentHash(NormalizeHash(upper)))
	assert.False(t, IsContentHash(upper), "uppercase is not normalized")
	assert.False(t, IsContentHash("abc"))
}

func TestCoinIDDerivation(t *testing.T) {
	parent := MustParseIdentifier(strings.Repeat("aa", 32))
	puzzle := MustParseIdentifier(strings.Repeat("bb", 32))

	tests := []struct {
		name   string
		amount uint64
		want   string
	}{
		{"one mojo", 1, "79140d96859072ea797f1702c6db1559bfa7be1b7451b4395e535db53141fc2b"},
		{"high bit gets sign byte", 0x80, "626503a66d823b4bca2e58491c985b9ce12e415a598d71cf4c3b1c80b788f08b"},
		{"zero encodes empty", 0, "e2d80f78d79027556d6619a1400605abbdca6bb6eb24e0831e33ecd5466fa5f6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coin := Coin{ParentID: parent, PuzzleHash: puzzle, Amount: tt.amount}
			assert.Equal(t, tt.want, coin.ID().String())
			assert.Equal(t, coin.ID(), ChainRecord{Coin: coin}.ID())
		})
	}
}

func TestEncodeAmount(t *testing.T) {
	assert.Empty(t, encodeAmount(0))
	assert.Equal(t, []byte{0x01}, encodeAmount(1))
	assert.Equal(t, []byte{0x7f}, encodeAmount(0x7f))
	assert.Equal(t, []byte{0x00, 0x80}, encodeAmount(0x80))
	assert.Equal(t, []byte{0x01, 0x00}, encodeAmount(0x100))
	assert.Equal(t, []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, encodeAmount(^uint64(0)))
}
