package db

import (
	"github.com/mnohosten/kura-db/pkg/skiplist"
	"github.com/mnohosten/kura-db/pkg/wal"
)

// Config holds database configuration.
type Config struct {
	// Dir is the directory holding the write-ahead log files.
	Dir string

	// Comparator defines the user-key order.
	Comparator skiplist.Comparator

	// MemTableSize is the arena usage at which the mutable memtable is
	// rotated out.
	MemTableSize int64

	// MaxLevel caps skip-list node levels. 19 suits large memtables;
	// 10 is plenty for small ones.
	MaxLevel int

	// LevelP is the skip-list level promotion probability.
	LevelP float64

	// ArenaBlockSize is the memtable arena block size in bytes.
	ArenaBlockSize int

	// LogBlockSize is the WAL block size in bytes.
	LogBlockSize int
}

// DefaultConfig returns the default configuration for a database in dir.
func DefaultConfig(dir string) *Config {
	return &Config{
		Dir:            dir,
		Comparator:     skiplist.BytesComparator,
		MemTableSize:   4 * 1024 * 1024, // 4MB
		MaxLevel:       19,
		LevelP:         0.1,
		ArenaBlockSize: 4 * 1024,
		LogBlockSize:   wal.DefaultBlockSize,
	}
}
