package clvm

import "fmt"

// Deserialize decodes a serialized program. The whole input must be
// consumed.
func Deserialize(data []byte) (*Program, error) {
	d := decoder{data: data}
	p, err := d.program(0)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(d.data)-d.pos)
	}
	return p, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) next() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, fmt.Errorf("%w: unexpected end of input at offset %d", ErrMalformed, d.pos)
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) program(depth int) (*Program, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrMalformed, maxDepth)
	}
	b, err := d.next()
	if err != nil {
		return nil, err
	}
	switch {
	case b == tagPair:
		// Lists nest on the right, so walk the spine iteratively and only
		// recurse into the left side.
		var firsts []*Program
		for {
			first, err := d.program(depth + 1)
			if err != nil {
				return nil, err
			}
			firsts = append(firsts, first)
			if d.pos < len(d.data) && d.data[d.pos] == tagPair {
				d.pos++
				continue
			}
			break
		}
		tail, err := d.program(depth + 1)
		if err != nil {
			return nil, err
		}
		for i := len(firsts) - 1; i >= 0; i-- {
			tail = Cons(firsts[i], tail)
		}
		return tail, nil
	case b == tagBackref:
		return nil, fmt.Errorf("%w: back references are not supported (offset %d)", ErrMalformed, d.pos-1)
	case b <= 0x7f:
		return Atom([]byte{b}), nil
	default:
		return d.atom(b)
	}
}

// atom reads a size-prefixed atom whose first prefix byte is b.
func (d *decoder) atom(b byte) (*Program, error) {
	var size uint64
	var extra int
	switch {
	case b&0xc0 == 0x80:
		size, extra = uint64(b&0x3f), 0
	case b&0xe0 == 0xc0:
		size, extra = uint64(b&0x1f), 1
	case b&0xf0 == 0xe0:
		size, extra = uint64(b&0x0f), 2
	case b&0xf8 == 0xf0:
		size, extra = uint64(b&0x07), 3
	case b&0xfc == 0xf8:
		size, extra = uint64(b&0x03), 4
	default:
		return nil, fmt.Errorf("%w: invalid size prefix 0x%02x at offset %d", ErrMalformed, b, d.pos-1)
	}
	for i := 0; i < extra; i++ {
		nb, err := d.next()
		if err != nil {
			return nil, err
		}
		size = size<<8 | uint64(nb)
	}
	if size > uint64(len(d.data)-d.pos) {
		return nil, fmt.Errorf("%w: atom of %d bytes overruns input at offset %d", ErrMalformed, size, d.pos)
	}
	atom := make([]byte, size)
	copy(atom, d.data[d.pos:d.pos+int(size)])
	d.pos += int(size)
	return Atom(atom), nil
}

// Serialize encodes the program.
func (p *Program) Serialize() []byte {
	var out []byte
	return p.appendTo(out)
}

func (p *Program) appendTo(out []byte) []byte {
	for !p.IsAtom() {
		out = append(out, tagPair)
		out = p.first.appendTo(out)
		p = p.rest
	}
	return appendAtom(out, p.atom)
}

func appendAtom(out, atom []byte) []byte {
	n := len(atom)
	switch {
	case n == 0:
		return append(out, tagNil)
	case n == 1 && atom[0] <= 0x7f:
		return append(out, atom[0])
	case n < 0x40:
		out = append(out, 0x80|byte(n))
	case n < 0x2000:
		out = append(out, 0xc0|byte(n>>8), byte(n))
	case n < 0x100000:
		out = append(out, 0xe0|byte(n>>16), byte(n>>8), byte(n))
	case n < 0x8000000:
		out = append(out, 0xf0|byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		out = append(out, 0xf8|byte(n>>32), byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
	return append(out, atom...)
}
