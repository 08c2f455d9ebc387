// Package clvm decodes serialized CLVM programs, the encoding nodes use for
// puzzle reveals and spend solutions.
//
// Only the plain serialization is supported: atoms and cons pairs. The
// back-reference compression some nodes use for blocks (0xfe) is rejected as
// malformed, since spend solutions are served uncompressed.
package clvm

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned for any payload that is not a valid serialized
// program.
var ErrMalformed = errors.New("clvm: malformed program")

// maxDepth bounds pair nesting so hostile payloads cannot exhaust the stack.
const maxDepth = 1 << 14

const (
	tagPair    = 0xff
	tagBackref = 0xfe
	tagNil     = 0x80
)

// Program is a CLVM value: either an atom or a pair.
type Program struct {
	atom  []byte
	first *Program
	rest  *Program
}

// Nil is the empty atom, which also terminates lists.
var Nil = &Program{atom: []byte{}}

// Atom builds an atom program.
func Atom(b []byte) *Program {
	if b == nil {
		b = []byte{}
	}
	return &Program{atom: b}
}

// Cons builds a pair program.
func Cons(first, rest *Program) *Program {
	return &Program{first: first, rest: rest}
}

// List builds a proper list from items.
func List(items ...*Program) *Program {
	out := Nil
	for i := len(items) - 1; i >= 0; i-- {
		out = Cons(items[i], out)
	}
	return out
}

// IsAtom reports whether p is an atom.
func (p *Program) IsAtom() bool {
	return p.first == nil
}

// IsNil reports whether p is the empty atom.
func (p *Program) IsNil() bool {
	return p.IsAtom() && len(p.atom) == 0
}

// AtomBytes returns the atom payload, or nil for pairs.
func (p *Program) AtomBytes() []byte {
	if !p.IsAtom() {
		return nil
	}
	return p.atom
}

// ToList flattens a proper list. An improper tail is an error.
func (p *Program) ToList() ([]*Program, error) {
	var items []*Program
	cur := p
	for !cur.IsAtom() {
		items = append(items, cur.first)
		cur = cur.rest
	}
	if !cur.IsNil() {
		return nil, fmt.Errorf("%w: list ends in non-nil atom", ErrMalformed)
	}
	return items, nil
}

// Bytes returns the atom payload for atoms and the serialized form for pairs.
// This mirrors how a message that is itself a structure is persisted.
func (p *Program) Bytes() []byte {
	if p.IsAtom() {
		return p.atom
	}
	return p.Serialize()
}

// Equal reports structural equality.
func (p *Program) Equal(o *Program) bool {
	if p.IsAtom() != o.IsAtom() {
		return false
	}
	if p.IsAtom() {
		return bytes.Equal(p.atom, o.atom)
	}
	return p.first.Equal(o.first) && p.rest.Equal(o.rest)
}

// String renders atoms that are printable text as quoted strings and
// everything else as 0x hex, in list notation for pairs.
func (p *Program) String() string {
	var b strings.Builder
	p.writeString(&b)
	return b.String()
}

func (p *Program) writeString(b *strings.Builder) {
	if p.IsAtom() {
		switch {
		case len(p.atom) == 0:
			b.WriteString("()")
		case isPrintable(p.atom):
			fmt.Fprintf(b, "%q", p.atom)
		default:
			b.WriteString("0x" + hex.EncodeToString(p.atom))
		}
		return
	}
	b.WriteByte('(')
	cur := p
	for i := 0; !cur.IsAtom(); i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		cur.first.writeString(b)
		cur = cur.rest
	}
	if !cur.IsNil() {
		b.WriteString(" . ")
		cur.writeString(b)
	}
	b.WriteByte(')')
}

func isPrintable(data []byte) bool {
	for _, c := range data {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
