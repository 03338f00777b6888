package infer

import "slices"

type varEntry[V any] struct {
	parent uint32
	value  V
	bound  bool
}

// unificationTable is a union-find over inference variables of one kind.
// Roots may carry a value once the variable is resolved.
type unificationTable[V any] struct {
	entries []varEntry[V]
}

func (t *unificationTable[V]) newVar() uint32 {
	id := uint32(len(t.entries))
	t.entries = append(t.entries, varEntry[V]{parent: id})
	return id
}

func (t *unificationTable[V]) len() int {
	return len(t.entries)
}

func (t *unificationTable[V]) find(id uint32) uint32 {
	root := id
	for t.entries[root].parent != root {
		root = t.entries[root].parent
	}
	// path compression
	for t.entries[id].parent != root {
		next := t.entries[id].parent
		t.entries[id].parent = root
		id = next
	}
	return root
}

// probe returns the value of the class of id, if it has one
func (t *unificationTable[V]) probe(id uint32) (v V, ok bool) {
	e := t.entries[t.find(id)]
	return e.value, e.bound
}

func (t *unificationTable[V]) bind(id uint32, v V) {
	root := t.find(id)
	t.entries[root].value = v
	t.entries[root].bound = true
}

// union merges the classes of a and b. The caller must make sure at most
// one of them is bound, or that their values were already related.
func (t *unificationTable[V]) union(a, b uint32) uint32 {
	ra, rb := t.find(a), t.find(b)
	if ra == rb {
		return ra
	}
	// keep the older variable as root so that resolution is deterministic
	if rb < ra {
		ra, rb = rb, ra
	}
	if !t.entries[ra].bound && t.entries[rb].bound {
		t.entries[ra].value = t.entries[rb].value
		t.entries[ra].bound = true
	}
	t.entries[rb].parent = ra
	return ra
}

func (t *unificationTable[V]) clone() unificationTable[V] {
	return unificationTable[V]{entries: slices.Clone(t.entries)}
}
