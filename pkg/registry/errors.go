package registry

import "errors"

// ErrNotFound is returned when an operation targets a MAC with no registry row.
var ErrNotFound = errors.New("device not found in registry")
