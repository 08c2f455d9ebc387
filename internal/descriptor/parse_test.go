package descriptor

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainfile/internal/model"
)

const (
	hashHelloWorld = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	hashHello      = "5e3235a8346e5a4585f8c58562f5052b8fe26a3bb122e1e96c76784964dfc461"
	hashWorld      = "486ea46224d1bb4fb680f34f7c9ad96a8f24ec88be73ea8e5a6c65260e9cb8a7"
)

var (
	id1 = strings.Repeat("11", 32)
	id2 = strings.Repeat("22", 32)
)

func helloDescriptor() string {
	return fmt.Sprintf(`{"filename":"a.txt","hash":%q,"mediaType":"text/plain","hashChunks":{%q:%q,%q:%q}}`,
		hashHelloWorld, hashHello, id1, hashWorld, id2)
}

func TestParse(t *testing.T) {
	d, err := ParseString(helloDescriptor())
	require.NoError(t, err)

	assert.Equal(t, "a.txt", d.Filename)
	assert.Equal(t, hashHelloWorld, d.Hash)
	assert.Equal(t, "text/plain", d.MediaType)
	require.Len(t, d.HashChunks, 2)
	assert.Equal(t, model.ChunkRef{Hash: hashHello, Source: model.MustParseIdentifier(id1)}, d.HashChunks[0])
	assert.Equal(t, model.ChunkRef{Hash: hashWorld, Source: model.MustParseIdentifier(id2)}, d.HashChunks[1])
}

func TestParsePreservesDocumentOrder(t *testing.T) {
	// Keys deliberately out of lexical order.
	msg := fmt.Sprintf(`{"hashChunks":{%q:%q,%q:%q},"filename":"b.txt","hash":%q}`,
		hashWorld, id2, hashHello, id1, hashHelloWorld)

	d, err := ParseString(msg)
	require.NoError(t, err)
	assert.Equal(t, []string{hashWorld, hashHello}, d.HashChunks.Hashes())
}

func TestParseNormalizes(t *testing.T) {
	msg := fmt.Sprintf(`  '{"filename":"a.txt","hash":"0x%s","hashChunks":{"0X%s":"0x%s"}}'  `,
		strings.ToUpper(hashHelloWorld), strings.ToUpper(hashHello), id1)

	d, err := ParseString(msg)
	require.NoError(t, err)
	assert.Equal(t, hashHelloWorld, d.Hash)
	assert.Equal(t, hashHello, d.HashChunks[0].Hash)
	assert.Equal(t, id1, d.HashChunks[0].Source.String())
}

func TestParseToleratesExtraFields(t *testing.T) {
	msg := fmt.Sprintf(`{"filename":"a.txt","hash":%q,"hashChunks":{},"hashes":[1,2],"publisher":{"name":"x"}}`, hashHelloWorld)
	d, err := ParseString(msg)
	require.NoError(t, err)
	assert.Empty(t, d.HashChunks)
}

func TestParseInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":              "   ",
		"not json":           "hello world",
		"array":              `["a"]`,
		"missing filename":   fmt.Sprintf(`{"hash":%q,"hashChunks":{}}`, hashHelloWorld),
		"empty filename":     fmt.Sprintf(`{"filename":"","hash":%q,"hashChunks":{}}`, hashHelloWorld),
		"missing hash":       `{"filename":"a.txt","hashChunks":{}}`,
		"missing hashChunks": fmt.Sprintf(`{"filename":"a.txt","hash":%q}`, hashHelloWorld),
		"hashChunks array":   fmt.Sprintf(`{"filename":"a.txt","hash":%q,"hashChunks":[%q]}`, hashHelloWorld, hashHello),
		"numeric chunk id":   fmt.Sprintf(`{"filename":"a.txt","hash":%q,"hashChunks":{%q:7}}`, hashHelloWorld, hashHello),
		"short hash":         `{"filename":"a.txt","hash":"abc","hashChunks":{}}`,
		"short chunk id":     fmt.Sprintf(`{"filename":"a.txt","hash":%q,"hashChunks":{%q:"0xabc"}}`, hashHelloWorld, hashHello),
		"duplicate chunk":    fmt.Sprintf(`{"filename":"a.txt","hash":%q,"hashChunks":{%q:%q,%q:%q}}`, hashHelloWorld, hashHello, id1, hashHello, id1),
		"dot filename":       fmt.Sprintf(`{"filename":"..","hash":%q,"hashChunks":{}}`, hashHelloWorld),
	}

	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := ParseString(msg)
			require.Error(t, err)
			assert.Nil(t, d)
			assert.True(t, IsInvalidDescriptor(err), "got %T: %v", err, err)
		})
	}
}

func TestOutputName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a.txt", "a.txt"},
		{"../../etc/passwd", "passwd"},
		{"/abs/path/file.bin", "file.bin"},
		{`C:\Users\me\doc.pdf`, "doc.pdf"},
		{"cafe\u0301.txt", "caf\u00e9.txt"},
	}
	for _, tc := range cases {
		got, err := OutputName(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "/", "dir/..", ".", "chunks", "../pending"} {
		_, err := OutputName(bad)
		assert.True(t, IsInvalidDescriptor(err), bad)
	}
}

func TestParseRejectsChunkStoreFilename(t *testing.T) {
	msg := strings.Replace(helloDescriptor(), `"a.txt"`, `"pending"`, 1)

	_, err := ParseString(msg)
	require.Error(t, err)
	assert.True(t, IsInvalidDescriptor(err))
	assert.Contains(t, err.Error(), "reserved")
}

func TestMarshalRoundTripKeepsOrder(t *testing.T) {
	d, err := ParseString(helloDescriptor())
	require.NoError(t, err)

	data, err := Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, helloDescriptor(), string(data))

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, d, again)
}
