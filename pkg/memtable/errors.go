package memtable

import "errors"

var (
	// ErrSequenceNumberOverflow is returned when a sequence number no
	// longer fits in the 63 bits a value tag reserves for it.
	ErrSequenceNumberOverflow = errors.New("sequence number overflow")
)
