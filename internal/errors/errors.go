// Package errors provides consolidated error definitions for the reader daemon.
//
// This file provides:
// - Sentinel errors for all recoverable and fatal conditions
// - Error category checking functions
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// ErrNotFound indicates an object does not exist in the store.
	ErrNotFound = errors.New("object not found")

	// ErrMalformedMessage indicates an inbound message had the wrong
	// frame count. Recovered at ingress: log and drop.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrMalformedRequest indicates request bytes that could not be
	// parsed. Recovered per message: telemetry plus end-of-burst reply.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrCacheInconsistent indicates a stat failure on a day file that
	// was previously cached. Fatal: the cache cannot be trusted.
	ErrCacheInconsistent = errors.New("day map cache inconsistent with store")

	// ErrCompressionFailed indicates the compressor produced no output.
	// Degrades to an empty payload for the affected bucket.
	ErrCompressionFailed = errors.New("compression failed")

	// ErrLockTimeout indicates an object lock lease could not be taken.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrShutdown indicates an operation was abandoned because the
	// daemon is shutting down.
	ErrShutdown = errors.New("shutting down")
)

// ============================================================================
// Category checks
// ============================================================================

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFatal reports whether err must tear down the daemon rather than be
// handled locally by a worker.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCacheInconsistent)
}

// ============================================================================
// Wrapping utilities
// ============================================================================

// Wrap annotates err with a message, preserving the error chain.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf annotates err with a formatted message, preserving the error chain.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
