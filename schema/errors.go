package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidSize indicates a frame buffer allocation was rejected.
	// Callers must not retry with the same size.
	ErrInvalidSize = errors.New("invalid buffer size")
	// ErrSizeMismatch indicates a full-frame copy whose source size disagrees
	// with the destination buffer.
	ErrSizeMismatch = errors.New("buffer size mismatch")
	// ErrNullSource indicates the engine delivered a nil pixel buffer.
	ErrNullSource = errors.New("nil source buffer")
	// ErrTabNotFound indicates a requested tab handle or index is not present.
	ErrTabNotFound = errors.New("tab not found")
	// ErrNoTabs indicates no tabs are open.
	ErrNoTabs = errors.New("no tabs")
	// ErrEngineSession indicates the browser engine refused to create or
	// resize a session.
	ErrEngineSession = errors.New("engine session failed")
	// ErrInvalidURL indicates an unusable navigation target.
	ErrInvalidURL = errors.New("invalid url")
)
