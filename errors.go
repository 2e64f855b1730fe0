package goglib

import (
	"errors"
)

// Common errors
var (
	// ErrAlreadyWrapped indicates a handle already has a wrapper.
	ErrAlreadyWrapped = errors.New("goglib: handle already has a wrapper")

	// ErrNotSupported indicates the runtime lacks the requested capability.
	ErrNotSupported = errors.New("goglib: operation not supported by runtime")

	// ErrPropertyType indicates a property value of the wrong Go type.
	ErrPropertyType = errors.New("goglib: property value has the wrong type")

	// ErrDestroyed indicates the wrapper's handle has been finalized.
	ErrDestroyed = errors.New("goglib: wrapper is destroyed")
)
