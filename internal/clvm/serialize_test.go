package clvm

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeserializeKnownEncodings(t *testing.T) {
	tests := []struct {
		name string
		hex  string
		want *Program
	}{
		{"nil", "80", Nil},
		{"small int atom", "05", Atom([]byte{0x05})},
		{"one byte above 0x7f", "8180", Atom([]byte{0x80})},
		{"string atom", "8568656c6c6f", Atom([]byte("hello"))},
		{"single element list", "ff8568656c6c6f80", List(Atom([]byte("hello")))},
		{"two element list", "ff8568656c6c6fff0580", List(Atom([]byte("hello")), Atom([]byte{5}))},
		{"improper pair", "ff0101", Cons(Atom([]byte{1}), Atom([]byte{1}))},
		{"nested list", "ffff0180ff0280", List(List(Atom([]byte{1})), Atom([]byte{2}))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := hex.DecodeString(tt.hex)
			require.NoError(t, err)
			got, err := Deserialize(data)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
			assert.Equal(t, tt.hex, hex.EncodeToString(got.Serialize()), "serialization must round-trip byte for byte")
		})
	}
}

func TestAtomSizePrefixes(t *testing.T) {
	for _, size := range []int{0x3f, 0x40, 0x1fff, 0x2000, 0xfffff, 0x100000} {
		atom := bytes.Repeat([]byte{0xab}, size)
		encoded := Atom(atom).Serialize()

		got, err := Deserialize(encoded)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, atom, got.AtomBytes(), "size %d", size)
	}
}

func TestDeserializeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty input", nil},
		{"truncated pair", []byte{0xff, 0x01}},
		{"atom overruns input", []byte{0x85, 'h', 'i'}},
		{"truncated size prefix", []byte{0xc0}},
		{"back reference", []byte{0xfe, 0x01}},
		{"invalid prefix", []byte{0xfc}},
		{"trailing bytes", []byte{0x80, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "error should wrap ErrMalformed: %v", err)
		})
	}
}

func TestToList(t *testing.T) {
	items, err := List(Atom([]byte("a")), Atom([]byte("b")), Atom([]byte("c"))).ToList()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []byte("c"), items[2].AtomBytes())

	items, err = Nil.ToList()
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = Cons(Atom([]byte{1}), Atom([]byte{2})).ToList()
	require.ErrorIs(t, err, ErrMalformed)
}

func TestLongListDoesNotRecurseOnSpine(t *testing.T) {
	items := make([]*Program, maxDepth*2)
	for i := range items {
		items[i] = Atom([]byte{byte(i % 0x7f)})
	}

	got, err := Deserialize(List(items...).Serialize())
	require.NoError(t, err)

	list, err := got.ToList()
	require.NoError(t, err)
	assert.Len(t, list, len(items))
}

func TestBytesForPairReserializes(t *testing.T) {
	pair := List(Atom([]byte("x")))
	assert.Equal(t, pair.Serialize(), pair.Bytes())
	assert.Equal(t, []byte("x"), Atom([]byte("x")).Bytes())
}

func TestString(t *testing.T) {
	p := List(Atom([]byte("hi")), Atom([]byte{0x00, 0xff}), Nil)
	assert.Equal(t, `("hi" 0x00ff ())`, p.String())
	assert.Equal(t, `("1" . "2")`, Cons(Atom([]byte("1")), Atom([]byte("2"))).String())
}
