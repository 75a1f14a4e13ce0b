package memtable

import (
	"github.com/mnohosten/kura-db/pkg/skiplist"
)

// MemTable is a frozen, read-only memtable. It keeps the log number of the
// WAL file that mirrors its contents so the flush side can pair them up.
type MemTable struct {
	list      *skiplist.SkipList
	userCmp   skiplist.Comparator
	logNumber uint64
}

// MemTableMut is the mutable memtable absorbing writes. Concurrent Add and
// Seek calls are safe; Freeze requires that no Add is in flight, which the
// database façade enforces through its rotation lock.
type MemTableMut struct {
	MemTable
}

// NewMemTableMut creates an empty mutable memtable whose skip list orders
// entries by the internal-key order derived from userCmp.
func NewMemTableMut(logNumber uint64, userCmp skiplist.Comparator, gen skiplist.LevelGenerator, arenaBlockSize int) *MemTableMut {
	return &MemTableMut{
		MemTable: MemTable{
			list:      skiplist.New(InternalKeyComparator(userCmp), gen, arenaBlockSize),
			userCmp:   userCmp,
			logNumber: logNumber,
		},
	}
}

// Add inserts an internal key with its value bytes.
func (m *MemTableMut) Add(ik InternalKey, value []byte) {
	m.list.Insert(ik, value)
}

// Freeze seals the memtable. The returned immutable view shares the
// underlying skip list; the mutable handle must not be used afterwards.
func (m *MemTableMut) Freeze() *MemTable {
	return &m.MemTable
}

// SeekByInternalKey returns the value stored under an exactly matching
// internal key.
func (m *MemTable) SeekByInternalKey(ik InternalKey) ([]byte, bool) {
	return m.list.Seek(ik)
}

// SeekByKeyAndSequence performs a snapshot read: among all records with the
// given user key it returns the one with the largest sequence number not
// exceeding sequence. Tombstones are returned with their tag so callers can
// distinguish deletion from absence.
func (m *MemTable) SeekByKeyAndSequence(userKey []byte, sequence uint64) (ValueTag, []byte, bool) {
	probe := NewInternalKey(userKey, ValueTag{Sequence: sequence, Type: TypeValue})

	v := m.list.Visitor()
	v.SeekLessOrEqual(probe)
	if !v.Valid() {
		return ValueTag{}, nil, false
	}
	if m.userCmp(UserKey(v.Key()), userKey) != 0 {
		return ValueTag{}, nil, false
	}

	return Tag(v.Key()), v.Value(), true
}

// MemoryUsage reports the bytes held by the memtable's arena.
func (m *MemTable) MemoryUsage() int64 {
	return m.list.MemoryUsage()
}

// Len returns the number of records.
func (m *MemTable) Len() int {
	return m.list.Len()
}

// LogNumber returns the number of the WAL file mirroring this memtable.
func (m *MemTable) LogNumber() uint64 {
	return m.logNumber
}

// Iterator scans all records in internal-key order.
func (m *MemTable) Iterator() *Iterator {
	return &Iterator{inner: m.list.Iterator()}
}

// Iterator walks a memtable in internal-key order.
type Iterator struct {
	inner *skiplist.Iterator
}

// Next advances the iterator and reports whether it landed on a record.
func (it *Iterator) Next() bool {
	return it.inner.Next()
}

// InternalKey returns the current record's encoded internal key.
func (it *Iterator) InternalKey() InternalKey {
	return InternalKey(it.inner.Key())
}

// UserKey returns the current record's user key.
func (it *Iterator) UserKey() []byte {
	return UserKey(it.inner.Key())
}

// Tag returns the current record's value tag.
func (it *Iterator) Tag() ValueTag {
	return Tag(it.inner.Key())
}

// Value returns the current record's value bytes.
func (it *Iterator) Value() []byte {
	return it.inner.Value()
}
