package wal

import (
	"encoding/binary"
	"fmt"
)

// Record is one logical WAL entry: a key/value pair. On disk it is encoded
// as uvarint(klen) | key | uvarint(vlen) | value and carries no framing of
// its own; record boundaries come from the chunk sequence.
type Record struct {
	Key   []byte
	Value []byte
}

// NewRecord builds a record over the given key and value bytes.
func NewRecord(key, value []byte) *Record {
	return &Record{Key: key, Value: value}
}

// Encode serialises the record payload.
func (r *Record) Encode() []byte {
	var lengths [2 * binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lengths[:], uint64(len(r.Key)))

	buf := make([]byte, 0, len(lengths)+len(r.Key)+len(r.Value))
	buf = append(buf, lengths[:n]...)
	buf = append(buf, r.Key...)

	n = binary.PutUvarint(lengths[:], uint64(len(r.Value)))
	buf = append(buf, lengths[:n]...)
	buf = append(buf, r.Value...)

	return buf
}

// Len is the encoded payload size.
func (r *Record) Len() int {
	return uvarintLen(uint64(len(r.Key))) + len(r.Key) +
		uvarintLen(uint64(len(r.Value))) + len(r.Value)
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// DecodeRecord parses an encoded record payload.
func DecodeRecord(b []byte) (*Record, error) {
	keyLen, n := binary.Uvarint(b)
	if n <= 0 || uint64(len(b)-n) < keyLen {
		return nil, fmt.Errorf("%w: bad key length", ErrMalformedRecord)
	}
	b = b[n:]
	key := b[:keyLen]
	b = b[keyLen:]

	valueLen, n := binary.Uvarint(b)
	if n <= 0 || uint64(len(b)-n) < valueLen {
		return nil, fmt.Errorf("%w: bad value length", ErrMalformedRecord)
	}
	b = b[n:]
	value := b[:valueLen]

	return &Record{Key: key, Value: value}, nil
}

// RecordChunk is one element of a fragmented record write: either a data
// chunk, or Slop zero-padding bytes closing out a block tail too small to
// hold another chunk.
type RecordChunk struct {
	Chunk *Chunk
	Slop  int
}

// Chunks splits the record into the chunk sequence to append, given
// firstSize bytes remaining in the current block and blockSize for every
// following block. It returns the sequence and the bytes remaining in the
// last block touched; the returned remainder is never below MinChunkSize
// because small tails are closed out with slop. firstSize must be at least
// MinChunkSize.
func (r *Record) Chunks(firstSize, blockSize int) ([]RecordChunk, int) {
	payload := r.Encode()

	var chunks []RecordChunk
	remaining := firstSize
	pos := 0

	for {
		space := remaining - chunkHeaderSize
		left := len(payload) - pos

		var ty ChunkType
		take := left
		switch {
		case left <= space && pos == 0:
			ty = ChunkFull
		case left <= space:
			ty = ChunkLast
		case pos == 0:
			ty = ChunkFirst
			take = space
		default:
			ty = ChunkMiddle
			take = space
		}

		chunk := NewChunk(payload[pos:pos+take], ty)
		chunks = append(chunks, RecordChunk{Chunk: chunk})
		pos += take
		remaining -= chunk.Len()

		if remaining == 0 {
			remaining = blockSize
		} else if remaining < MinChunkSize {
			chunks = append(chunks, RecordChunk{Slop: remaining})
			remaining = blockSize
		}

		if ty.IsEnding() {
			return chunks, remaining
		}
	}
}
