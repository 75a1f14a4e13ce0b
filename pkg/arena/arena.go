package arena

import (
	"sync"
	"sync/atomic"
)

// nodeAlign is the alignment applied to every allocation. Skip-list node
// headers containing pointer-sized fields are laid out inside arena bytes,
// so every returned address must be at least pointer-aligned.
const nodeAlign = 8

// Arena is a block-based bump allocator. Allocations are carved from fixed
// size backing blocks and are never freed individually; the whole arena is
// released at once when it becomes unreachable. Returned byte slices never
// move, so addresses taken into them stay valid for the arena's lifetime.
type Arena struct {
	mu        sync.Mutex
	blocks    [][]byte
	current   []byte // unallocated remainder of the newest normal block
	blockSize int
	used      int64 // bytes requested plus alignment slop
}

// New creates an empty arena that grows in blocks of blockSize bytes.
func New(blockSize int) *Arena {
	return &Arena{
		blockSize: blockSize,
	}
}

// align rounds n up to the node alignment boundary.
func align(n int) int {
	return (n + nodeAlign - 1) &^ (nodeAlign - 1)
}

// Allocate reserves size bytes and returns them as a slice of exactly that
// length. The backing memory is aligned to the node alignment and is not
// zeroed beyond what the runtime guarantees for fresh blocks; callers must
// fully initialise it before publishing.
func (a *Arena) Allocate(size int) []byte {
	need := align(size)

	a.mu.Lock()
	defer a.mu.Unlock()

	atomic.AddInt64(&a.used, int64(need))

	if need <= len(a.current) {
		buf := a.current[:size:need]
		a.current = a.current[need:]
		return buf
	}

	return a.allocateFallback(size, need)
}

// allocateFallback handles requests that do not fit the current block.
// Large requests get a dedicated block sized for the request so that the
// common block remainder is not wasted on them; everything else opens a
// fresh normal block and abandons the old remainder.
func (a *Arena) allocateFallback(size, need int) []byte {
	if need > a.blockSize/4 {
		block := make([]byte, need)
		a.blocks = append(a.blocks, block)
		return block[:size:need]
	}

	block := make([]byte, a.blockSize)
	a.blocks = append(a.blocks, block)
	a.current = block[need:]
	return block[:size:need]
}

// MemoryUsage reports the total bytes requested from the arena, including
// alignment slop. It is a conservative upper bound on the payload bytes
// handed out and is safe to call concurrently with Allocate.
func (a *Arena) MemoryUsage() int64 {
	return atomic.LoadInt64(&a.used)
}
