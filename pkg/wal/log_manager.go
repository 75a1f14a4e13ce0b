package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
)

var logFilePattern = regexp.MustCompile(`^log_(\d+)$`)

// LogManager owns the write-ahead log files of one database: it appends
// records to the current file, rotates to a fresh file when the memtable
// rotates, and enumerates or replays older files. The file mutex covers the
// handle and the remaining block space and is held only across a single
// write-and-flush or file swap; it never overlaps any other lock.
type LogManager struct {
	dir       string
	blockSize int
	logNumber uint64

	mu        sync.Mutex
	file      *os.File
	remaining int
}

// NewLogManager creates dir/log_<firstLogNumber> and returns a manager
// appending to it in blocks of blockSize bytes.
func NewLogManager(dir string, firstLogNumber uint64, blockSize int) (*LogManager, error) {
	m := &LogManager{
		dir:       dir,
		blockSize: blockSize,
		logNumber: firstLogNumber,
		remaining: blockSize,
	}

	file, err := os.Create(m.logFile(firstLogNumber))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnableToCreateFile, m.logFile(firstLogNumber), err)
	}
	m.file = file

	return m, nil
}

// logFile returns the path of the log file for a log number.
func (m *LogManager) logFile(logNumber uint64) string {
	return filepath.Join(m.dir, fmt.Sprintf("log_%d", logNumber))
}

// LogNumber returns the number of the file currently being appended to.
func (m *LogManager) LogNumber() uint64 {
	return atomic.LoadUint64(&m.logNumber)
}

// InsertRecord appends one record to the current file: the chunk sequence
// for the remaining block space, including any slop padding, is assembled
// into a single buffer, written in one call and flushed.
func (m *LogManager) InsertRecord(record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	chunks, remaining := record.Chunks(m.remaining, m.blockSize)

	size := 0
	for _, rc := range chunks {
		if rc.Chunk != nil {
			size += rc.Chunk.Len()
		} else {
			size += rc.Slop
		}
	}

	buf := make([]byte, 0, size)
	for _, rc := range chunks {
		if rc.Chunk != nil {
			buf = rc.Chunk.AppendTo(buf)
		} else {
			buf = append(buf, make([]byte, rc.Slop)...)
		}
	}

	if _, err := m.file.Write(buf); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnableToWriteLogFile, m.file.Name(), err)
	}
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnableToWriteLogFile, m.file.Name(), err)
	}

	m.remaining = remaining
	return nil
}

// FreezeCurrentFile closes out the current file and starts appending to a
// fresh log_<newLogNumber>. Called under the façade's rotation lock, paired
// with the memtable swap.
func (m *LogManager) FreezeCurrentFile(newLogNumber uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.Create(m.logFile(newLogNumber))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnableToCreateFile, m.logFile(newLogNumber), err)
	}

	old := m.file
	m.file = file
	m.remaining = m.blockSize
	atomic.StoreUint64(&m.logNumber, newLogNumber)

	old.Close()
	return nil
}

// TruncateLog deletes log_<logNumber>. The caller retries later on failure;
// until then the file only wastes disk.
func (m *LogManager) TruncateLog(logNumber uint64) error {
	path := m.logFile(logNumber)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnableToTruncateLogFile, path, err)
	}
	return nil
}

// LogIterator opens log_<logNumber> with an independent read-only handle
// and returns a replay stream over its records.
func (m *LogManager) LogIterator(logNumber uint64) (*LogIterator, error) {
	path := m.logFile(logNumber)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnableToReadLogFile, path, err)
	}

	return NewLogIterator(path, m.blockSize, file), nil
}

// ExistingLogNumbers scans the directory for log files and returns their
// numbers in ascending order, excluding the currently active one.
func (m *LogManager) ExistingLogNumbers() ([]uint64, error) {
	numbers, err := ListLogNumbers(m.dir)
	if err != nil {
		return nil, err
	}

	current := m.LogNumber()
	filtered := numbers[:0]
	for _, number := range numbers {
		if number != current {
			filtered = append(filtered, number)
		}
	}
	return filtered, nil
}

// ListLogNumbers returns the numbers of every log file in dir in ascending
// order.
func ListLogNumbers(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnableToReadDir, dir, err)
	}

	var numbers []uint64
	for _, entry := range entries {
		match := logFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		number, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, number)
	}

	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	return numbers, nil
}

// Close flushes and closes the current file.
func (m *LogManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnableToWriteLogFile, m.file.Name(), err)
	}
	return m.file.Close()
}
