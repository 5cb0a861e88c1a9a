package poseidon

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Sponge is an incremental Poseidon sponge. The zero value is not usable;
// construct with NewSponge.
type Sponge struct {
	state    [stateWidth]fr.Element
	absorbed int
}

// NewSponge returns a sponge whose initial state is fixed by the domain tag.
func NewSponge(tag string) *Sponge {
	return &Sponge{state: initialState(tag)}
}

// Absorb feeds field elements into the sponge.
func (s *Sponge) Absorb(fs ...fr.Element) {
	for _, f := range fs {
		if s.absorbed == spongeRate {
			permute(&s.state)
			s.absorbed = 0
		}
		s.state[s.absorbed].Add(&s.state[s.absorbed], &f)
		s.absorbed++
	}
}

// Squeeze closes the current block and returns one field element.
func (s *Sponge) Squeeze() fr.Element {
	permute(&s.state)
	s.absorbed = 0
	return s.state[0]
}

// Hash absorbs fields under the tag and squeezes a single element.
func Hash(tag string, fields ...fr.Element) fr.Element {
	sp := NewSponge(tag)
	sp.Absorb(fields...)
	return sp.Squeeze()
}

// HashTwo is the binary node hash used throughout the Merkle structures.
func HashTwo(tag string, left, right fr.Element) fr.Element {
	return Hash(tag, left, right)
}

// HashBytes packs a byte string into field elements (31 bytes per element,
// big-endian within the element) and hashes them under the tag. Used for
// zkApp URIs and token symbols.
func HashBytes(tag string, data []byte) fr.Element {
	fields := PackBytes(data)
	// Trailing length element keeps strings of different lengths distinct.
	var n fr.Element
	n.SetUint64(uint64(len(data)))
	fields = append(fields, n)
	return Hash(tag, fields...)
}

// PackBytes packs bytes into field elements, 31 bytes per element.
func PackBytes(data []byte) []fr.Element {
	var out []fr.Element
	for len(data) > 0 {
		n := len(data)
		if n > 31 {
			n = 31
		}
		var buf [32]byte
		copy(buf[32-n:], data[:n])
		var e fr.Element
		e.SetBytes(buf[:])
		out = append(out, e)
		data = data[n:]
	}
	return out
}
