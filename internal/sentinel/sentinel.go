package sentinel

import "errors"

// Store errors. Stores return these, possibly wrapped, and services translate
// them into domain errors once.
var (
	ErrNotFound    = errors.New("not found")
	ErrBadRequest  = errors.New("bad request")
	ErrAlreadyUsed = errors.New("already used")
)
