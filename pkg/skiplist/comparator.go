package skiplist

import (
	"bytes"
	"encoding/binary"
)

// Comparator defines a total order over byte-string keys. It returns a
// negative number when a sorts before b, zero when they are equal, and a
// positive number when a sorts after b.
type Comparator func(a, b []byte) int

// BytesComparator orders keys lexicographically.
func BytesComparator(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Uint32Comparator orders 4-byte little-endian encoded numbers by value.
// It is mainly useful in tests that want dense numeric key spaces.
func Uint32Comparator(a, b []byte) int {
	av := binary.LittleEndian.Uint32(a)
	bv := binary.LittleEndian.Uint32(b)

	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}
