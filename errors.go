package kbase

import "errors"

var (
	// ErrAlreadyInitialized is returned by a second call to Initialize.
	ErrAlreadyInitialized = errors.New("engine already initialized")

	// ErrNotInitialized is returned by operations that need an active backend.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrNotSemantic is returned by operations only the semantic backend supports.
	ErrNotSemantic = errors.New("semantic backend not active")
)
