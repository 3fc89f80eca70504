package voicepipe

import "errors"

// Sentinel errors for pipeline operations.
// These errors enable reliable error classification using errors.Is().

// Initialization errors.
var (
	// ErrNilSource indicates Initialize was called without a source stream.
	ErrNilSource = errors.New("source stream is nil")

	// ErrAlreadyInitialized indicates the pipeline is already running.
	// Call Cleanup before initializing again.
	ErrAlreadyInitialized = errors.New("pipeline is already initialized")
)

// Capability errors.
var (
	// ErrUnsupportedEnvironment indicates the capability implementation
	// cannot build an enhancement chain in this environment. The
	// pipeline recovers by passing audio through unmodified.
	ErrUnsupportedEnvironment = errors.New("audio enhancement not supported in this environment")
)
