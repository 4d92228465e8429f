package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicateSequence is returned when an audit append loses the race for
// its (chain_id, seq) slot. Callers retry with the refreshed chain head.
var ErrDuplicateSequence = errors.New("storage: duplicate audit sequence")
