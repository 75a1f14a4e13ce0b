package memtable

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mnohosten/kura-db/pkg/skiplist"
)

func uint32Key(n uint32) []byte {
	key := make([]byte, 4)
	binary.LittleEndian.PutUint32(key, n)
	return key
}

func newTestMemTable() *MemTableMut {
	return NewMemTableMut(0, skiplist.Uint32Comparator, skiplist.NewRandomLevelGenerator(19, 0.25), 4*1024)
}

func TestValueTagRoundTrip(t *testing.T) {
	tag, err := NewValueTag(12345, TypeTombstone)
	require.NoError(t, err)

	wrapped := tag.Wrap()
	decoded := UnwrapValueTag(wrapped[:])

	assert.Equal(t, uint64(12345), decoded.Sequence)
	assert.Equal(t, TypeTombstone, decoded.Type)
	assert.True(t, decoded.IsTombstone())

	for _, seq := range []uint64{0, 1, 1 << 20, MaxSequenceNumber} {
		for _, ty := range []ValueType{TypeValue, TypeTombstone} {
			tag, err := NewValueTag(seq, ty)
			require.NoError(t, err)
			wrapped := tag.Wrap()
			decoded := UnwrapValueTag(wrapped[:])
			assert.Equal(t, seq, decoded.Sequence)
			assert.Equal(t, ty, decoded.Type)
		}
	}
}

func TestValueTagOverflow(t *testing.T) {
	_, err := NewValueTag(MaxSequenceNumber+1, TypeValue)
	assert.ErrorIs(t, err, ErrSequenceNumberOverflow)
}

func TestInternalKeyComparator(t *testing.T) {
	cmp := InternalKeyComparator(skiplist.Uint32Comparator)

	tag := func(seq uint64) ValueTag {
		vt, err := NewValueTag(seq, TypeValue)
		require.NoError(t, err)
		return vt
	}

	// Same user key: sequence ascending breaks the tie.
	assert.Negative(t, cmp(
		NewInternalKey(uint32Key(100), tag(1)),
		NewInternalKey(uint32Key(100), tag(2)),
	))

	// Different user keys: user-key order wins regardless of sequence.
	assert.Positive(t, cmp(
		NewInternalKey(uint32Key(101), tag(1)),
		NewInternalKey(uint32Key(100), tag(2)),
	))

	// Type bit does not participate in the order.
	assert.Zero(t, cmp(
		NewInternalKey(uint32Key(100), ValueTag{Sequence: 7, Type: TypeValue}),
		NewInternalKey(uint32Key(100), ValueTag{Sequence: 7, Type: TypeTombstone}),
	))
}

func TestMemTableSnapshotSearch(t *testing.T) {
	mt := newTestMemTable()

	key := uint32Key(100)
	mt.Add(NewInternalKey(key, ValueTag{Sequence: 1, Type: TypeValue}), []byte("v1"))
	mt.Add(NewInternalKey(key, ValueTag{Sequence: 2, Type: TypeTombstone}), nil)

	// Snapshot at sequence 1 sees the live value.
	tag, value, found := mt.SeekByKeyAndSequence(key, 1)
	require.True(t, found)
	assert.True(t, tag.IsValue())
	assert.Equal(t, []byte("v1"), value)

	// Snapshots at and after the deletion see the tombstone.
	tag, _, found = mt.SeekByKeyAndSequence(key, 2)
	require.True(t, found)
	assert.True(t, tag.IsTombstone())

	tag, _, found = mt.SeekByKeyAndSequence(key, 3)
	require.True(t, found)
	assert.True(t, tag.IsTombstone())

	// A key that was never written is absent.
	_, _, found = mt.SeekByKeyAndSequence(uint32Key(200), 3)
	assert.False(t, found)
}

func TestMemTableSeekByInternalKey(t *testing.T) {
	mt := newTestMemTable()

	ik := NewInternalKey(uint32Key(42), ValueTag{Sequence: 9, Type: TypeValue})
	mt.Add(ik, []byte("answer"))

	value, found := mt.SeekByInternalKey(ik)
	require.True(t, found)
	assert.Equal(t, []byte("answer"), value)

	_, found = mt.SeekByInternalKey(NewInternalKey(uint32Key(42), ValueTag{Sequence: 8, Type: TypeValue}))
	assert.False(t, found)
}

func TestMemTableFreeze(t *testing.T) {
	mt := newTestMemTable()

	mt.Add(NewInternalKey(uint32Key(1), ValueTag{Sequence: 1, Type: TypeValue}), []byte("one"))
	frozen := mt.Freeze()

	tag, value, found := frozen.SeekByKeyAndSequence(uint32Key(1), 5)
	require.True(t, found)
	assert.True(t, tag.IsValue())
	assert.Equal(t, []byte("one"), value)
	assert.Equal(t, uint64(0), frozen.LogNumber())
	assert.Equal(t, 1, frozen.Len())
}

func TestMemTableIterator(t *testing.T) {
	mt := newTestMemTable()

	for _, k := range rand.Perm(500) {
		mt.Add(NewInternalKey(uint32Key(uint32(k)), ValueTag{Sequence: 1, Type: TypeValue}), uint32Key(uint32(k)))
	}

	it := mt.Iterator()
	count := uint32(0)
	for it.Next() {
		require.Equal(t, count, binary.LittleEndian.Uint32(it.UserKey()))
		require.Equal(t, uint64(1), it.Tag().Sequence)
		count++
	}
	assert.Equal(t, uint32(500), count)
}

func TestMemTableConcurrent(t *testing.T) {
	total := 1000000
	workers := 72
	if testing.Short() {
		total = 20000
		workers = runtime.GOMAXPROCS(0) * 2
	}

	mt := NewMemTableMut(0, skiplist.Uint32Comparator, skiplist.NewRandomLevelGenerator(19, 0.25), 64*1024)

	perm := rand.Perm(total)

	var g errgroup.Group
	chunk := (total + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > total {
			end = total
		}
		part := perm[start:end]
		g.Go(func() error {
			for _, k := range part {
				key := uint32Key(uint32(k))
				mt.Add(NewInternalKey(key, ValueTag{Sequence: 1, Type: TypeValue}), key)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// Delete a slice of the key space at sequence 2.
	deleteStart, deleteEnd := total*9/10, total*9/10+total/100
	for k := deleteStart; k < deleteEnd; k++ {
		mt.Add(NewInternalKey(uint32Key(uint32(k)), ValueTag{Sequence: 2, Type: TypeTombstone}), nil)
	}

	var verify errgroup.Group
	for w := 0; w < workers; w++ {
		start := deleteStart + w
		verify.Go(func() error {
			for k := start; k < deleteEnd; k += workers {
				key := uint32Key(uint32(k))

				tag, _, found := mt.SeekByKeyAndSequence(key, 1)
				if !found || !tag.IsValue() {
					return fmt.Errorf("key %d: expected live value at sequence 1", k)
				}

				tag, _, found = mt.SeekByKeyAndSequence(key, 2)
				if !found || !tag.IsTombstone() {
					return fmt.Errorf("key %d: expected tombstone at sequence 2", k)
				}

				tag, _, found = mt.SeekByKeyAndSequence(key, 3)
				if !found || !tag.IsTombstone() {
					return fmt.Errorf("key %d: expected tombstone at sequence 3", k)
				}
			}
			return nil
		})
	}
	require.NoError(t, verify.Wait())
}
