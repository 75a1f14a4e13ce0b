package memtable

import (
	"encoding/binary"
)

// ValueType distinguishes live values from deletion markers.
type ValueType uint8

const (
	// TypeValue marks a record carrying value bytes.
	TypeValue ValueType = 0

	// TypeTombstone marks a deletion; the record carries no value bytes.
	TypeTombstone ValueType = 1
)

const (
	// TagSize is the wire size of a wrapped value tag.
	TagSize = 8

	// MaxSequenceNumber is the largest sequence number a tag can carry.
	// The remaining bit of the 8-byte tag encodes the value type.
	MaxSequenceNumber = uint64(1)<<63 - 1

	tagTypeBit = uint64(1) << 63
)

// ValueTag identifies one write: the sequence number it happened at and
// whether it stored a value or a tombstone.
type ValueTag struct {
	Sequence uint64
	Type     ValueType
}

// NewValueTag builds a tag, rejecting sequences that do not fit in 63 bits.
func NewValueTag(sequence uint64, ty ValueType) (ValueTag, error) {
	if sequence > MaxSequenceNumber {
		return ValueTag{}, ErrSequenceNumberOverflow
	}

	return ValueTag{Sequence: sequence, Type: ty}, nil
}

// Wrap packs the tag into its 8-byte big-endian encoding: the sequence in
// the low 63 bits, the type in the top bit.
func (t ValueTag) Wrap() [TagSize]byte {
	num := t.Sequence
	if t.Type == TypeTombstone {
		num |= tagTypeBit
	}

	var buf [TagSize]byte
	binary.BigEndian.PutUint64(buf[:], num)
	return buf
}

// UnwrapValueTag decodes all 8 bytes of a wrapped tag.
func UnwrapValueTag(buf []byte) ValueTag {
	num := binary.BigEndian.Uint64(buf[:TagSize])

	ty := TypeValue
	if num&tagTypeBit != 0 {
		ty = TypeTombstone
	}

	return ValueTag{
		Sequence: num &^ tagTypeBit,
		Type:     ty,
	}
}

// IsValue reports whether the tag marks a live value.
func (t ValueTag) IsValue() bool {
	return t.Type == TypeValue
}

// IsTombstone reports whether the tag marks a deletion.
func (t ValueTag) IsTombstone() bool {
	return t.Type == TypeTombstone
}
