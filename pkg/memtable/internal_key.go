package memtable

import (
	"github.com/mnohosten/kura-db/pkg/skiplist"
)

// InternalKey is the skip-list ordering key: an 8-byte wrapped value tag
// followed by the user key bytes.
type InternalKey []byte

// NewInternalKey encodes userKey under tag.
func NewInternalKey(userKey []byte, tag ValueTag) InternalKey {
	wrapped := tag.Wrap()

	ik := make([]byte, TagSize+len(userKey))
	copy(ik, wrapped[:])
	copy(ik[TagSize:], userKey)
	return ik
}

// UserKey returns the user-key portion of an encoded internal key.
func UserKey(ik []byte) []byte {
	return ik[TagSize:]
}

// Tag decodes the value tag portion of an encoded internal key.
func Tag(ik []byte) ValueTag {
	return UnwrapValueTag(ik[:TagSize])
}

// InternalKeyComparator derives the internal-key order from a user-key
// comparator: user keys ascending, equal user keys broken by sequence
// number ascending. The type bit never participates in the order, so a
// value and a tombstone at the same sequence compare as equal.
func InternalKeyComparator(userCmp skiplist.Comparator) skiplist.Comparator {
	return func(a, b []byte) int {
		if cmp := userCmp(UserKey(a), UserKey(b)); cmp != 0 {
			return cmp
		}

		aSeq := Tag(a).Sequence
		bSeq := Tag(b).Sequence
		switch {
		case aSeq < bSeq:
			return -1
		case aSeq > bSeq:
			return 1
		default:
			return 0
		}
	}
}
