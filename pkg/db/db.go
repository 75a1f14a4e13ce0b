package db

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/mnohosten/kura-db/pkg/memtable"
	"github.com/mnohosten/kura-db/pkg/skiplist"
	"github.com/mnohosten/kura-db/pkg/wal"
)

// DB is the write path of the storage engine: a mutable memtable absorbing
// writes mirrored into a write-ahead log, a list of frozen memtables
// awaiting flush, and a session registry handing out read sequences.
//
// The flush side is an external collaborator: it drains ImmutableMemTables
// and calls ReleaseMemTable once a table is safely on disk.
type DB struct {
	config    *Config
	generator skiplist.LevelGenerator
	sessions  *SessionFactory
	logs      *wal.LogManager

	logNumber uint64 // highest memtable log number handed out

	mu     sync.RWMutex // guards mem and closed
	mem    *memtable.MemTableMut
	closed bool

	immuMu     sync.RWMutex
	immutables []*memtable.MemTable
}

// Open creates or reopens the database in config.Dir. Existing log files
// are replayed into frozen memtables so no acknowledged write is lost, and
// the sequence counter resumes past the highest sequence seen.
func Open(config *Config) (*DB, error) {
	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	existing, err := wal.ListLogNumbers(config.Dir)
	if err != nil {
		return nil, err
	}

	firstLogNumber := uint64(0)
	if len(existing) > 0 {
		firstLogNumber = existing[len(existing)-1] + 1
	}

	logs, err := wal.NewLogManager(config.Dir, firstLogNumber, config.LogBlockSize)
	if err != nil {
		return nil, err
	}

	generator := skiplist.NewRandomLevelGenerator(config.MaxLevel, config.LevelP)

	db := &DB{
		config:    config,
		generator: generator,
		logs:      logs,
		logNumber: firstLogNumber,
		mem:       memtable.NewMemTableMut(firstLogNumber, config.Comparator, generator, config.ArenaBlockSize),
	}

	nextSequence, err := db.recover(existing)
	if err != nil {
		logs.Close()
		return nil, err
	}
	db.sessions = NewSessionFactory(nextSequence)

	return db, nil
}

// recover replays the given log files oldest-first into frozen memtables
// and returns the sequence number to resume at. A corrupt tail ends that
// file's replay; everything before it is kept.
func (db *DB) recover(logNumbers []uint64) (uint64, error) {
	var nextSequence uint64

	for _, logNumber := range logNumbers {
		it, err := db.logs.LogIterator(logNumber)
		if err != nil {
			return 0, err
		}

		recovered := memtable.NewMemTableMut(logNumber, db.config.Comparator, db.generator, db.config.ArenaBlockSize)

		for {
			record, err := it.NextRecord()
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, wal.ErrUnexpectedChunkCRC) || errors.Is(err, wal.ErrMalformedRecord) {
				// Best-effort replay: the log is good up to here.
				break
			}
			if err != nil {
				it.Close()
				return 0, err
			}

			if len(record.Key) < memtable.TagSize {
				// Not an internal key; the tail is garbage.
				break
			}

			ik := memtable.InternalKey(record.Key)
			recovered.Add(ik, record.Value)

			if sequence := memtable.Tag(ik).Sequence; sequence >= nextSequence {
				nextSequence = sequence + 1
			}
		}
		it.Close()

		if recovered.Len() > 0 {
			db.immutables = append(db.immutables, recovered.Freeze())
		}
	}

	return nextSequence, nil
}

// NewSession returns a handle on a fresh read sequence. The caller must
// Close it to let the compactor reclaim tombstones behind it.
func (db *DB) NewSession() (*Session, error) {
	return db.sessions.NewSession()
}

// Sessions exposes the session registry.
func (db *DB) Sessions() *SessionFactory {
	return db.sessions
}

// Put records key -> value.
func (db *DB) Put(key, value []byte) error {
	return db.write(key, value, memtable.TypeValue)
}

// Delete records a tombstone for key.
func (db *DB) Delete(key []byte) error {
	return db.write(key, nil, memtable.TypeTombstone)
}

// write appends the record to the WAL first and then publishes it in the
// mutable memtable; on a crash in between, replay restores the record. The
// read lock keeps rotation from swapping the memtable mid-write.
func (db *DB) write(userKey, value []byte, ty memtable.ValueType) error {
	session, err := db.sessions.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	tag, err := memtable.NewValueTag(session.Sequence(), ty)
	if err != nil {
		return err
	}
	ik := memtable.NewInternalKey(userKey, tag)

	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return ErrClosed
	}

	if err := db.logs.InsertRecord(wal.NewRecord(ik, value)); err != nil {
		db.mu.RUnlock()
		return err
	}
	db.mem.Add(ik, value)
	usage := db.mem.MemoryUsage()
	db.mu.RUnlock()

	if usage >= db.config.MemTableSize {
		return db.maybeRotate()
	}
	return nil
}

// Get reads key as of the session's sequence: the mutable memtable first,
// then the frozen ones newest-first. A tombstone hides the key.
func (db *DB) Get(key []byte, session *Session) ([]byte, error) {
	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return nil, ErrClosed
	}
	mem := &db.mem.MemTable
	db.mu.RUnlock()

	sequence := session.Sequence()

	if tag, value, ok := mem.SeekByKeyAndSequence(key, sequence); ok {
		if tag.IsTombstone() {
			return nil, ErrKeyNotFound
		}
		return value, nil
	}

	db.immuMu.RLock()
	defer db.immuMu.RUnlock()

	for i := len(db.immutables) - 1; i >= 0; i-- {
		if tag, value, ok := db.immutables[i].SeekByKeyAndSequence(key, sequence); ok {
			if tag.IsTombstone() {
				return nil, ErrKeyNotFound
			}
			return value, nil
		}
	}

	return nil, ErrKeyNotFound
}

// Rotate freezes the mutable memtable and its log file and starts fresh
// ones under the next log number. A log rotation failure is a fatal
// storage error; the memtable has already been swapped when it surfaces.
func (db *DB) Rotate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	return db.rotateLocked()
}

// maybeRotate re-checks the threshold under the write lock so concurrent
// writers trigger a single rotation.
func (db *DB) maybeRotate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	if db.mem.MemoryUsage() < db.config.MemTableSize {
		return nil
	}
	return db.rotateLocked()
}

func (db *DB) rotateLocked() error {
	newLogNumber := atomic.AddUint64(&db.logNumber, 1)

	old := db.mem
	db.mem = memtable.NewMemTableMut(newLogNumber, db.config.Comparator, db.generator, db.config.ArenaBlockSize)

	if err := db.logs.FreezeCurrentFile(newLogNumber); err != nil {
		return err
	}

	frozen := old.Freeze()
	db.immuMu.Lock()
	db.immutables = append(db.immutables, frozen)
	db.immuMu.Unlock()

	return nil
}

// MemoryUsage reports the mutable memtable's arena usage.
func (db *DB) MemoryUsage() int64 {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.mem.MemoryUsage()
}

// ImmutableMemTables returns a snapshot of the frozen memtables awaiting
// flush, oldest first.
func (db *DB) ImmutableMemTables() []*memtable.MemTable {
	db.immuMu.RLock()
	defer db.immuMu.RUnlock()

	tables := make([]*memtable.MemTable, len(db.immutables))
	copy(tables, db.immutables)
	return tables
}

// ReleaseMemTable drops the frozen memtable with the given log number
// after it has been flushed, and deletes its log file. A failed deletion
// is reported but only leaks disk until the next attempt.
func (db *DB) ReleaseMemTable(logNumber uint64) error {
	db.immuMu.Lock()
	kept := db.immutables[:0]
	for _, table := range db.immutables {
		if table.LogNumber() != logNumber {
			kept = append(kept, table)
		}
	}
	db.immutables = kept
	db.immuMu.Unlock()

	return db.logs.TruncateLog(logNumber)
}

// Close seals the database and its log file.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	db.closed = true

	return db.logs.Close()
}
