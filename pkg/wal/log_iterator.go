package wal

import (
	"fmt"
	"io"
	"os"
)

// LogIterator replays one log file as a stream of record payloads. It reads
// block-aligned and keeps the unconsumed tail of the previous block in a
// suffix buffer; tails smaller than MinChunkSize are writer padding and are
// skipped.
type LogIterator struct {
	file      *os.File
	path      string
	blockSize int
	suffix    []byte
	eof       bool
}

// NewLogIterator wraps an open log file handle. The iterator owns the
// handle and closes it via Close.
func NewLogIterator(path string, blockSize int, file *os.File) *LogIterator {
	return &LogIterator{
		file:      file,
		path:      path,
		blockSize: blockSize,
	}
}

// Next returns the next record's reassembled payload bytes. At the clean
// end of the file it returns io.EOF. A checksum or framing failure yields
// ErrUnexpectedChunkCRC; a read error, or a file that ends after a chunk in
// the middle of a record, yields ErrUnableToReadLogFile. A short final block
// is treated as the end of the file.
func (it *LogIterator) Next() ([]byte, error) {
	if it.eof && len(it.suffix) < MinChunkSize {
		return nil, io.EOF
	}

	var data []byte

	for {
		var blockRef []byte
		if len(it.suffix) >= MinChunkSize {
			blockRef = it.suffix
		} else {
			block := make([]byte, it.blockSize)
			n, err := io.ReadFull(it.file, block)
			switch err {
			case nil:
			case io.EOF, io.ErrUnexpectedEOF:
				it.eof = true
			default:
				return nil, fmt.Errorf("%w: %s: %v", ErrUnableToReadLogFile, it.path, err)
			}
			blockRef = block[:n]
		}

		if len(blockRef) < MinChunkSize {
			if len(data) > 0 {
				return nil, fmt.Errorf("%w: %s: truncated record", ErrUnableToReadLogFile, it.path)
			}
			return nil, io.EOF
		}

		foundEnding := false
		for {
			chunk, ok := DecodeChunk(blockRef)
			if !ok || !chunk.CheckCRC() {
				return nil, fmt.Errorf("%w: %s", ErrUnexpectedChunkCRC, it.path)
			}

			data = append(data, chunk.Payload()...)
			blockRef = blockRef[chunk.Len():]

			if len(blockRef) < MinChunkSize {
				// The block tail is padding; whether the record is
				// complete depends on the chunk we just read.
				foundEnding = chunk.Type().IsEnding()
				break
			}
			if chunk.Type().IsEnding() {
				foundEnding = true
				break
			}
		}

		if len(blockRef) >= MinChunkSize {
			it.suffix = append(it.suffix[:0:0], blockRef...)
		} else {
			it.suffix = nil
		}

		if foundEnding {
			return data, nil
		}
	}
}

// NextRecord reads and decodes the next record.
func (it *LogIterator) NextRecord() (*Record, error) {
	payload, err := it.Next()
	if err != nil {
		return nil, err
	}
	return DecodeRecord(payload)
}

// Close releases the underlying file handle.
func (it *LogIterator) Close() error {
	return it.file.Close()
}
