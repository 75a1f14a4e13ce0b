package db

import (
	"sync"
	"sync/atomic"

	"github.com/mnohosten/kura-db/pkg/memtable"
)

// SessionFactory issues monotonically increasing sequence numbers and
// tracks which of them are still held by live sessions. The in-use set is
// what a compactor consults before dropping tombstones a reader might still
// need.
type SessionFactory struct {
	sequence uint64

	mu    sync.RWMutex
	inUse map[uint64]struct{}
}

// NewSessionFactory creates a factory whose next issued sequence is first.
func NewSessionFactory(first uint64) *SessionFactory {
	return &SessionFactory{
		sequence: first,
		inUse:    make(map[uint64]struct{}),
	}
}

// NewSession mints the next sequence number and registers it as in use.
// Sequences past 63 bits are refused.
func (f *SessionFactory) NewSession() (*Session, error) {
	sequence := atomic.AddUint64(&f.sequence, 1) - 1
	if sequence > memtable.MaxSequenceNumber {
		return nil, memtable.ErrSequenceNumberOverflow
	}

	f.mu.Lock()
	f.inUse[sequence] = struct{}{}
	f.mu.Unlock()

	return &Session{sequence: sequence, factory: f}, nil
}

// SequenceInUse reports whether a live session still holds sequence.
func (f *SessionFactory) SequenceInUse(sequence uint64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, ok := f.inUse[sequence]
	return ok
}

// dropSequence removes a released session's sequence from the in-use set.
func (f *SessionFactory) dropSequence(sequence uint64) {
	f.mu.Lock()
	delete(f.inUse, sequence)
	f.mu.Unlock()
}

// Session is a handle on one read sequence. Reads through the session see
// every write with a sequence at or below its own. Close releases the
// sequence; a closed session must not be used again.
type Session struct {
	sequence uint64
	factory  *SessionFactory
	once     sync.Once
}

// Sequence returns the session's read sequence.
func (s *Session) Sequence() uint64 {
	return s.sequence
}

// Close deregisters the session from its factory. It is safe to call more
// than once.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.factory.dropSequence(s.sequence)
	})
	return nil
}
