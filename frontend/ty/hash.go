package ty

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
)

// hasher writes a canonical encoding of a term into an FNV-1a hash.
// Two terms are syntactically equal iff their encodings are equal.
type hasher struct {
	h   hash.Hash64
	buf [8]byte
}

func newHasher() *hasher {
	return &hasher{h: fnv.New64a()}
}

func (h *hasher) tag(b byte) {
	h.buf[0] = b
	_, _ = h.h.Write(h.buf[:1])
}

func (h *hasher) uint(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.h.Write(h.buf[:])
}

func (h *hasher) str(s string) {
	h.uint(uint64(len(s)))
	_, _ = h.h.Write([]byte(s))
}

func (h *hasher) bool(b bool) {
	if b {
		h.tag(1)
	} else {
		h.tag(0)
	}
}

func (h *hasher) args(args []GenericArg) {
	h.uint(uint64(len(args)))
	for _, a := range args {
		a.hashInto(h)
	}
}

func (h *hasher) types(ts []Type) {
	h.uint(uint64(len(ts)))
	for _, t := range ts {
		t.hashInto(h)
	}
}

func (h *hasher) sum() uint64 {
	return h.h.Sum64()
}

type hashable interface {
	hashInto(h *hasher)
}

func hashOf(x hashable) uint64 {
	h := newHasher()
	x.hashInto(h)
	return h.sum()
}

// Equal reports whether two generic arguments are syntactically identical.
//
// Like the rest of the compiler, we compare by canonical hash rather than
// by walking both terms in lockstep.
func Equal(a, b GenericArg) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Hash() == b.Hash()
}

// PredicatesEqual reports whether two predicates are syntactically identical,
// including the identity of every region they mention.
func PredicatesEqual(a, b Predicate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Hash() == b.Hash()
}
