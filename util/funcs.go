package util

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-set/v3"
)

// JoinString shows each of elems and joins them with sep
func JoinString[S fmt.Stringer](elems []S, sep string) string {
	sb := strings.Builder{}
	for i, elem := range elems {
		if i != 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(elem.String())
	}
	return sb.String()
}

// DedupHashed returns elems in their original order, keeping only the first
// element of each hash
func DedupHashed[A set.Hasher[uint64]](elems []A) []A {
	seen := set.New[uint64](len(elems))
	deduped := make([]A, 0, len(elems))
	for _, elem := range elems {
		if seen.Insert(elem.Hash()) {
			deduped = append(deduped, elem)
		}
	}
	return deduped
}
