package descriptor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/chainfile/internal/model"
)

// cutset is stripped from both ends of a message before parsing. Publishers
// have been seen to wrap the JSON in quotes.
const cutset = " \t\r\n'\"`"

// Parse decodes a descriptor message.
//
// hashChunks keeps document order, which is the reassembly order. Hashes
// are lowercased and a 0x prefix is stripped from hashes and identifiers.
// Any problem is reported as *InvalidDescriptorError.
func Parse(message []byte) (*model.FileDescriptor, error) {
	data := bytes.Trim(message, cutset)
	if len(data) == 0 {
		return nil, invalid("", "empty message")
	}
	if !json.Valid(data) {
		return nil, invalid("", "not JSON")
	}
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	raw, err := decodeOrdered(data)
	if err != nil {
		return nil, err
	}
	return raw.normalize()
}

// ParseString is Parse for text messages and override files.
func ParseString(s string) (*model.FileDescriptor, error) {
	return Parse([]byte(s))
}

type rawChunk struct {
	hash string
	id   string
}

type rawDescriptor struct {
	filename   *string
	hash       *string
	mediaType  string
	hashChunks []rawChunk
	hasChunks  bool
}

// decodeOrdered walks the top-level object with a token decoder so the
// order of hashChunks survives.
func decodeOrdered(data []byte) (*rawDescriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{', ""); err != nil {
		return nil, err
	}

	out := &rawDescriptor{}
	for dec.More() {
		key, err := readKey(dec, "")
		if err != nil {
			return nil, err
		}
		switch key {
		case "filename":
			s, err := readString(dec, key)
			if err != nil {
				return nil, err
			}
			out.filename = &s
		case "hash":
			s, err := readString(dec, key)
			if err != nil {
				return nil, err
			}
			out.hash = &s
		case "mediaType":
			s, err := readString(dec, key)
			if err != nil {
				return nil, err
			}
			out.mediaType = s
		case "hashChunks":
			chunks, err := readChunks(dec)
			if err != nil {
				return nil, err
			}
			out.hashChunks = chunks
			out.hasChunks = true
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, &InvalidDescriptorError{Field: key, Err: err}
			}
		}
	}
	if err := expectDelim(dec, '}', ""); err != nil {
		return nil, err
	}
	return out, nil
}

func readChunks(dec *json.Decoder) ([]rawChunk, error) {
	const field = "hashChunks"
	if err := expectDelim(dec, '{', field); err != nil {
		return nil, err
	}

	var chunks []rawChunk
	seen := make(map[string]bool)
	for dec.More() {
		key, err := readKey(dec, field)
		if err != nil {
			return nil, err
		}
		id, err := readString(dec, field+"."+key)
		if err != nil {
			return nil, err
		}
		h := model.NormalizeHash(key)
		if seen[h] {
			return nil, invalid(field, "duplicate chunk hash %s", h)
		}
		seen[h] = true
		chunks = append(chunks, rawChunk{hash: key, id: id})
	}
	if err := expectDelim(dec, '}', field); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *rawDescriptor) normalize() (*model.FileDescriptor, error) {
	if r.filename == nil {
		return nil, invalid("filename", "required")
	}
	if r.hash == nil {
		return nil, invalid("hash", "required")
	}
	if !r.hasChunks {
		return nil, invalid("hashChunks", "required")
	}

	d := &model.FileDescriptor{
		Filename:  norm.NFC.String(*r.filename),
		Hash:      model.NormalizeHash(*r.hash),
		MediaType: r.mediaType,
	}
	if _, err := OutputName(d.Filename); err != nil {
		return nil, err
	}
	if !model.IsContentHash(d.Hash) {
		return nil, invalid("hash", "not a sha256 digest: %q", *r.hash)
	}

	d.HashChunks = make(model.HashChunks, 0, len(r.hashChunks))
	for _, c := range r.hashChunks {
		h := model.NormalizeHash(c.hash)
		if !model.IsContentHash(h) {
			return nil, invalid("hashChunks", "not a sha256 digest: %q", c.hash)
		}
		id, err := model.ParseIdentifier(c.id)
		if err != nil {
			return nil, &InvalidDescriptorError{Field: "hashChunks", Message: h, Err: err}
		}
		d.HashChunks = append(d.HashChunks, model.ChunkRef{Hash: h, Source: id})
	}
	return d, nil
}

// reservedNames are the chunk store's directories. The output directory
// defaults to the work directory, where a file by these names would
// collide with them.
var reservedNames = map[string]bool{"pending": true, "chunks": true}

// OutputName reduces a descriptor filename to a safe base name. Directory
// components are dropped so a descriptor can never write outside the
// output directory.
func OutputName(filename string) (string, error) {
	name := norm.NFC.String(strings.TrimSpace(filename))
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	switch {
	case name == "" || name == "." || name == ".." || name == "/":
		return "", invalid("filename", "no usable base name in %q", filename)
	case reservedNames[name]:
		return "", invalid("filename", "%q is reserved for the chunk store", name)
	}
	if strings.ContainsRune(name, 0) {
		return "", invalid("filename", "contains NUL")
	}
	return name, nil
}

// Marshal encodes d as descriptor JSON, keeping chunk order.
func Marshal(d *model.FileDescriptor) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeField(&buf, "filename", d.Filename)
	buf.WriteByte(',')
	writeField(&buf, "hash", d.Hash)
	if d.MediaType != "" {
		buf.WriteByte(',')
		writeField(&buf, "mediaType", d.MediaType)
	}
	buf.WriteString(`,"hashChunks":{`)
	for i, c := range d.HashChunks {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeField(&buf, c.Hash, c.Source.String())
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key, value string) {
	k, _ := json.Marshal(key)
	v, _ := json.Marshal(value)
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
}

func expectDelim(dec *json.Decoder, want json.Delim, field string) error {
	tok, err := dec.Token()
	if err != nil {
		return &InvalidDescriptorError{Field: field, Err: err}
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		if want == '{' {
			return invalid(field, "expected object")
		}
		return invalid(field, "expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder, field string) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", &InvalidDescriptorError{Field: field, Err: err}
	}
	key, ok := tok.(string)
	if !ok {
		return "", invalid(field, "expected key, got %v", tok)
	}
	return key, nil
}

func readString(dec *json.Decoder, field string) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", invalid(field, "unexpected end of input")
		}
		return "", &InvalidDescriptorError{Field: field, Err: err}
	}
	s, ok := tok.(string)
	if !ok {
		return "", invalid(field, "expected string, got %s", describe(tok))
	}
	return s, nil
}

func describe(tok json.Token) string {
	switch tok.(type) {
	case json.Delim:
		return fmt.Sprintf("%v", tok)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", tok)
	}
}
