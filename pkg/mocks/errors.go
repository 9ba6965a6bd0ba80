package mocks

import "errors"

// ErrNotFound is returned by mocks for unknown paths or sources.
var ErrNotFound = errors.New("mocks: not found")
