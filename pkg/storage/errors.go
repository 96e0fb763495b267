package storage

import "errors"

// ErrCorrupt marks a stored value that exists but cannot be decoded by the
// backend. Callers treat it like a record that does not match the running
// version and overwrite it.
var ErrCorrupt = errors.New("storage: corrupt value")
