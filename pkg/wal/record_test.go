package wal

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<63 - 1}
	for i := 0; i < 100; i++ {
		cases = append(cases, rand.Uint64())
	}

	for _, n := range cases {
		var buf [binary.MaxVarintLen64]byte
		size := binary.PutUvarint(buf[:], n)
		require.Equal(t, size, uvarintLen(n))

		decoded, read := binary.Uvarint(buf[:size])
		require.Equal(t, size, read)
		require.Equal(t, n, decoded)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("1145141919"),
		{},
		make([]byte, DefaultBlockSize-chunkHeaderSize),
	}
	rand.Read(payloads[2])

	for _, payload := range payloads {
		for _, ty := range []ChunkType{ChunkFull, ChunkFirst, ChunkMiddle, ChunkLast} {
			chunk := NewChunk(payload, ty)
			require.True(t, chunk.CheckCRC())

			encoded := chunk.AppendTo(nil)
			require.Len(t, encoded, chunk.Len())

			decoded, ok := DecodeChunk(encoded)
			require.True(t, ok)
			assert.Equal(t, chunk.Type(), decoded.Type())
			assert.Equal(t, chunk.CRC(), decoded.CRC())
			assert.Equal(t, chunk.PayloadLen(), decoded.PayloadLen())
			assert.Equal(t, chunk.Payload(), decoded.Payload())
			assert.True(t, decoded.CheckCRC())
		}
	}
}

func TestChunkDecodeCorruption(t *testing.T) {
	chunk := NewChunk([]byte("payload"), ChunkFull)
	encoded := chunk.AppendTo(nil)

	// Header shorter than the frame.
	_, ok := DecodeChunk(encoded[:5])
	assert.False(t, ok)

	// Declared length past the buffer.
	truncated := append([]byte(nil), encoded...)
	binary.BigEndian.PutUint16(truncated[4:6], 1000)
	_, ok = DecodeChunk(truncated)
	assert.False(t, ok)

	// Flipped payload bit fails the checksum.
	flipped := append([]byte(nil), encoded...)
	flipped[chunkHeaderSize] ^= 0xff
	decoded, ok := DecodeChunk(flipped)
	require.True(t, ok)
	assert.False(t, decoded.CheckCRC())
}

func TestRecordRoundTrip(t *testing.T) {
	record := NewRecord([]byte{1, 2, 3, 4}, []byte("iiyo koiyo"))

	encoded := record.Encode()
	require.Len(t, encoded, record.Len())

	decoded, err := DecodeRecord(encoded)
	require.NoError(t, err)
	assert.Equal(t, record.Key, decoded.Key)
	assert.Equal(t, record.Value, decoded.Value)
}

func TestRecordDecodeMalformed(t *testing.T) {
	_, err := DecodeRecord([]byte{})
	assert.ErrorIs(t, err, ErrMalformedRecord)

	// Key length pointing past the buffer.
	_, err = DecodeRecord([]byte{200, 1, 0})
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestRecordSingleChunk(t *testing.T) {
	record := NewRecord([]byte{1, 2, 3, 4}, []byte("iiyo koiyo"))

	chunks, remaining := record.Chunks(4096, 4096)
	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].Chunk)
	assert.Equal(t, ChunkFull, chunks[0].Chunk.Type())
	assert.Equal(t, 4096-chunks[0].Chunk.Len(), remaining)

	decoded, err := DecodeRecord(chunks[0].Chunk.Payload())
	require.NoError(t, err)
	assert.Equal(t, record.Key, decoded.Key)
	assert.Equal(t, record.Value, decoded.Value)
}

func TestRecordMultiChunk(t *testing.T) {
	key := make([]byte, 10)
	value := make([]byte, 100000)
	rand.Read(key)
	rand.Read(value)
	record := NewRecord(key, value)

	chunks, remaining := record.Chunks(1024, 4096)

	var dataChunks []*Chunk
	for _, rc := range chunks {
		if rc.Chunk != nil {
			dataChunks = append(dataChunks, rc.Chunk)
		}
	}
	require.GreaterOrEqual(t, len(dataChunks), 25)

	assert.Equal(t, ChunkFirst, dataChunks[0].Type())
	assert.Equal(t, 1024, dataChunks[0].Len())
	assert.Equal(t, ChunkLast, dataChunks[len(dataChunks)-1].Type())
	for _, c := range dataChunks[1 : len(dataChunks)-1] {
		assert.Equal(t, ChunkMiddle, c.Type())
		assert.LessOrEqual(t, c.Len(), 4096)
	}
	assert.GreaterOrEqual(t, remaining, MinChunkSize)

	var payload []byte
	for _, c := range dataChunks {
		payload = append(payload, c.Payload()...)
	}
	decoded, err := DecodeRecord(payload)
	require.NoError(t, err)
	assert.Equal(t, record.Key, decoded.Key)
	assert.Equal(t, record.Value, decoded.Value)
}

func TestRecordChunksSlop(t *testing.T) {
	// A first size that leaves a tail below MinChunkSize forces padding
	// before the next block opens.
	record := NewRecord(make([]byte, 100), make([]byte, 100))

	firstSize := record.Len() + chunkHeaderSize + MinChunkSize - 1
	chunks, remaining := record.Chunks(firstSize, 4096)

	require.Len(t, chunks, 2)
	require.NotNil(t, chunks[0].Chunk)
	assert.Equal(t, ChunkFull, chunks[0].Chunk.Type())
	assert.Nil(t, chunks[1].Chunk)
	assert.Equal(t, MinChunkSize-1, chunks[1].Slop)
	assert.Equal(t, 4096, remaining)
}
