package skiplist

import (
	"sync/atomic"

	"github.com/mnohosten/kura-db/pkg/arena"
)

// SkipList is a concurrent ordered map over byte-string keys. Nodes live in
// a bump-allocated arena, so published keys and values are immutable and
// stay addressable for the life of the list. Inserts are lock-free: writers
// race only on per-level successor CAS and on the height counter. Readers
// never lock.
type SkipList struct {
	head   *node
	arena  *arena.Arena
	cmp    Comparator
	gen    LevelGenerator
	height int32
	length int64
}

// prevNext is a per-level search result: the last node with a key strictly
// below the search key and its observed successor.
type prevNext struct {
	prev *node
	next *node
}

// New creates an empty skip list using cmp for key order, gen for node
// heights, and an arena growing in blocks of arenaBlockSize bytes.
func New(cmp Comparator, gen LevelGenerator, arenaBlockSize int) *SkipList {
	a := arena.New(arenaBlockSize)

	return &SkipList{
		head:  newHead(a, gen.MaxLevel()),
		arena: a,
		cmp:   cmp,
		gen:   gen,
	}
}

// Insert publishes key with its value. If a node with an equal key is
// already present the insert is a no-op; the earlier value wins.
func (s *SkipList) Insert(key, value []byte) {
	position := s.findPosition(key)

	for _, pn := range position {
		if pn.prev == pn.next {
			// Exact key already published.
			return
		}
	}

	nodeLevel := s.gen.GenerateLevel()

	if len(position) > nodeLevel+1 {
		position = position[:nodeLevel+1]
	}
	for len(position) < nodeLevel+1 {
		position = append(position, prevNext{prev: s.head})
	}

	nd := newNode(s.arena, key, value, nodeLevel)

	for level, pn := range position {
		prev, next := pn.prev, pn.next
		for {
			nd.setNext(level, next)
			if prev.casNext(level, next, nd) {
				break
			}

			// Lost the race at this level; re-search from the old
			// predecessor and retry.
			prev, next = s.findPositionForLevel(prev, key, level)
			if prev == next {
				// An equal key appeared concurrently; stop linking.
				return
			}
		}
	}

	for {
		height := s.Height()
		if height >= nodeLevel {
			break
		}
		if atomic.CompareAndSwapInt32(&s.height, int32(height), int32(nodeLevel)) {
			break
		}
	}

	atomic.AddInt64(&s.length, 1)
}

// Seek returns the value stored under an exactly matching key.
func (s *SkipList) Seek(key []byte) ([]byte, bool) {
	prev := s.head
	for level := s.Height(); level >= 0; level-- {
		for {
			next := prev.next(level)
			if next == nil {
				break
			}
			cmp := s.cmp(next.key, key)
			if cmp < 0 {
				prev = next
				continue
			}
			if cmp == 0 {
				return next.value, true
			}
			break
		}
	}

	return nil, false
}

// Visitor returns a cursor over the list supporting seek and forward
// iteration.
func (s *SkipList) Visitor() *Visitor {
	return &Visitor{list: s}
}

// Iterator returns an ordered scan over all entries, following level-0
// successors from the head.
func (s *SkipList) Iterator() *Iterator {
	return &Iterator{current: s.head}
}

// Len returns the number of published nodes.
func (s *SkipList) Len() int {
	return int(atomic.LoadInt64(&s.length))
}

// MemoryUsage reports the bytes consumed by the backing arena.
func (s *SkipList) MemoryUsage() int64 {
	return s.arena.MemoryUsage()
}

// Height returns the maximum level currently published.
func (s *SkipList) Height() int {
	return int(atomic.LoadInt32(&s.height))
}

// findPosition locates, for every level from the current height down to
// zero, the pair (prev, next) bracketing key. The result is indexed by
// level. A pair with prev == next marks an exact key match at that level.
func (s *SkipList) findPosition(key []byte) []prevNext {
	height := s.Height()
	position := make([]prevNext, height+1)

	prev := s.head
	for level := height; level >= 0; level-- {
		p, n := s.findPositionForLevel(prev, key, level)
		position[level] = prevNext{prev: p, next: n}
		prev = p
	}

	return position
}

// findPositionForLevel walks level starting at start until it brackets key.
// start must have height >= level. When a node with an equal key is found
// the node is returned as both prev and next.
func (s *SkipList) findPositionForLevel(start *node, key []byte, level int) (*node, *node) {
	prev := start
	for {
		next := prev.next(level)
		if next == nil {
			return prev, nil
		}

		cmp := s.cmp(next.key, key)
		switch {
		case cmp < 0:
			prev = next
		case cmp == 0:
			return next, next
		default:
			return prev, next
		}
	}
}
