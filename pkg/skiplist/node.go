package skiplist

import (
	"sync/atomic"
	"unsafe"

	"github.com/mnohosten/kura-db/pkg/arena"
)

// MaxHeight caps node height at compile time. Level generators must stay
// strictly below it.
const MaxHeight = 20

// node is laid out inside a single arena allocation:
//
//	[ key slice | value slice | height | tower[0..height] ][ key bytes ][ value bytes ]
//
// Only height+1 tower slots are actually allocated; the allocation is
// trimmed below unsafe.Sizeof(node{}) accordingly, so tower slots past the
// node's height must never be touched. The key and value slice headers
// point at the payload bytes copied right behind the trimmed header.
//
// Everything a node references lives in the same arena, which the owning
// skip list keeps reachable, so the garbage collector never needs to see
// the pointers stored in arena memory.
type node struct {
	key    []byte
	value  []byte
	height uint16
	tower  [MaxHeight]unsafe.Pointer
}

const (
	ptrSize       = unsafe.Sizeof(unsafe.Pointer(nil))
	towerOffset   = unsafe.Offsetof(node{}.tower)
	maxNodeSize   = int(unsafe.Sizeof(node{}))
	nodeAlignment = unsafe.Alignof(node{})
)

// nodeSize returns the trimmed header size for a node of the given height.
func nodeSize(height int) int {
	return int(towerOffset + uintptr(height+1)*ptrSize)
}

// newNode reserves a node of the given height in the arena and copies the
// key and value payloads behind the header. All tower slots are initialised
// to nil before the node is returned; publication happens later via CAS on
// the predecessors.
func newNode(a *arena.Arena, key, value []byte, height int) *node {
	size := nodeSize(height)
	buf := a.Allocate(size + len(key) + len(value))

	nd := (*node)(unsafe.Pointer(&buf[0]))
	nd.height = uint16(height)
	for i := 0; i <= height; i++ {
		nd.tower[i] = nil
	}

	payload := buf[size:]
	nd.key = payload[:len(key):len(key)]
	copy(nd.key, key)
	nd.value = payload[len(key) : len(key)+len(value) : len(key)+len(value)]
	copy(nd.value, value)

	return nd
}

// newHead reserves the sentinel head node. It carries no payload and spans
// every level up to height.
func newHead(a *arena.Arena, height int) *node {
	buf := a.Allocate(nodeSize(height))

	nd := (*node)(unsafe.Pointer(&buf[0]))
	nd.height = uint16(height)
	for i := 0; i <= height; i++ {
		nd.tower[i] = nil
	}

	return nd
}

// isHead reports whether the node is the sentinel. The sentinel is the only
// node without key bytes.
func (n *node) isHead() bool {
	return n.key == nil
}

// next atomically loads the successor at the given level.
func (n *node) next(level int) *node {
	return (*node)(atomic.LoadPointer(&n.tower[level]))
}

// setNext stores the successor at the given level. Used only before the
// node is published.
func (n *node) setNext(level int, next *node) {
	atomic.StorePointer(&n.tower[level], unsafe.Pointer(next))
}

// casNext publishes next in place of old at the given level.
func (n *node) casNext(level int, old, next *node) bool {
	return atomic.CompareAndSwapPointer(&n.tower[level], unsafe.Pointer(old), unsafe.Pointer(next))
}
