package skiplist

// Visitor is a cursor into a skip list. After a seek it is either valid and
// positioned on a node, or invalid. The head sentinel is never a valid
// position.
type Visitor struct {
	list    *SkipList
	current *node
}

// Seek positions the visitor on the node with an exactly matching key. The
// visitor becomes invalid when no such node exists.
func (v *Visitor) Seek(key []byte) {
	v.seek(key, false)
}

// SeekLessOrEqual positions the visitor on the node with the largest key
// less than or equal to key. The visitor becomes invalid when every key in
// the list is greater.
func (v *Visitor) SeekLessOrEqual(key []byte) {
	v.seek(key, true)
}

func (v *Visitor) seek(key []byte, lessOrEqual bool) {
	prev := v.list.head
	for level := v.list.Height(); level >= 0; level-- {
		for {
			next := prev.next(level)
			if next == nil {
				break
			}

			cmp := v.list.cmp(next.key, key)
			if cmp < 0 {
				prev = next
				continue
			}
			if cmp == 0 {
				v.current = next
				return
			}
			break
		}
	}

	if lessOrEqual {
		// prev is the largest node strictly below key; it may be the
		// head, which Valid reports as an invalid position.
		v.current = prev
		return
	}
	v.current = nil
}

// Valid reports whether the visitor is positioned on a real node.
func (v *Visitor) Valid() bool {
	return v.current != nil && !v.current.isHead()
}

// Key returns the key under the cursor. It must only be called on a valid
// visitor.
func (v *Visitor) Key() []byte {
	return v.current.key
}

// Value returns the value under the cursor. It must only be called on a
// valid visitor.
func (v *Visitor) Value() []byte {
	return v.current.value
}

// Next advances to the level-0 successor. The visitor becomes invalid at
// the end of the list.
func (v *Visitor) Next() {
	if v.current == nil {
		return
	}
	v.current = v.current.next(0)
}

// Iterator is an ordered scan over the whole list.
type Iterator struct {
	current *node
}

// Next advances the iterator and reports whether it landed on an entry.
func (it *Iterator) Next() bool {
	if it.current == nil {
		return false
	}
	it.current = it.current.next(0)
	return it.current != nil
}

// Key returns the key of the current entry.
func (it *Iterator) Key() []byte {
	if it.current == nil {
		return nil
	}
	return it.current.key
}

// Value returns the value of the current entry.
func (it *Iterator) Value() []byte {
	if it.current == nil {
		return nil
	}
	return it.current.value
}
