package wal

import (
	"encoding/binary"
	"hash/crc32"
)

const (
	// chunkHeaderSize is crc32 (4) + payload length (2) + type (1).
	chunkHeaderSize = 7

	// MinChunkSize is the smallest useful chunk. Block tails below this
	// size are written as zero padding and skipped on replay.
	MinChunkSize = 2 * chunkHeaderSize

	// DefaultBlockSize is the default log block size.
	DefaultBlockSize = 32 * 1024
)

// ChunkType tells a reader how a chunk relates to its record.
type ChunkType uint8

const (
	// ChunkFull holds a whole record.
	ChunkFull ChunkType = iota

	// ChunkFirst opens a fragmented record.
	ChunkFirst

	// ChunkMiddle continues a fragmented record.
	ChunkMiddle

	// ChunkLast closes a fragmented record.
	ChunkLast
)

// IsEnding reports whether the chunk completes a record.
func (t ChunkType) IsEnding() bool {
	return t == ChunkFull || t == ChunkLast
}

// Chunk is one framed, CRC-protected fragment of a record inside a block.
// All header fields are big-endian on disk.
type Chunk struct {
	ty      ChunkType
	crc     uint32
	payload []byte
}

// NewChunk frames payload under the given type, computing its CRC32-IEEE.
func NewChunk(payload []byte, ty ChunkType) *Chunk {
	return &Chunk{
		ty:      ty,
		crc:     crc32.ChecksumIEEE(payload),
		payload: payload,
	}
}

// DecodeChunk parses the chunk at the front of b. It reports false when b
// is too short to hold the header or the declared payload.
func DecodeChunk(b []byte) (*Chunk, bool) {
	if len(b) < chunkHeaderSize {
		return nil, false
	}

	crc := binary.BigEndian.Uint32(b[0:4])
	length := int(binary.BigEndian.Uint16(b[4:6]))
	ty := ChunkType(b[6])

	if ty > ChunkLast || chunkHeaderSize+length > len(b) {
		return nil, false
	}

	return &Chunk{
		ty:      ty,
		crc:     crc,
		payload: b[chunkHeaderSize : chunkHeaderSize+length],
	}, true
}

// AppendTo appends the encoded chunk (header then payload) to buf.
func (c *Chunk) AppendTo(buf []byte) []byte {
	var header [chunkHeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], c.crc)
	binary.BigEndian.PutUint16(header[4:6], uint16(len(c.payload)))
	header[6] = byte(c.ty)

	buf = append(buf, header[:]...)
	return append(buf, c.payload...)
}

// CheckCRC recomputes the payload checksum against the stored one.
func (c *Chunk) CheckCRC() bool {
	return crc32.ChecksumIEEE(c.payload) == c.crc
}

// Len is the encoded size: header plus payload.
func (c *Chunk) Len() int {
	return chunkHeaderSize + len(c.payload)
}

// PayloadLen is the payload size alone.
func (c *Chunk) PayloadLen() int {
	return len(c.payload)
}

// Type returns the chunk type.
func (c *Chunk) Type() ChunkType {
	return c.ty
}

// CRC returns the stored payload checksum.
func (c *Chunk) CRC() uint32 {
	return c.crc
}

// Payload returns the chunk's payload bytes.
func (c *Chunk) Payload() []byte {
	return c.payload
}
