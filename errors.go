// Package pgembed embeds a full PostgreSQL server inside a host
// application: given a version requirement, it resolves a matching
// release from a pluggable set of binary distributions, downloads and
// extracts it, initializes a data directory, and manages the lifecycle of
// a private server instance. It also installs native extensions into
// that instance from pluggable extension repositories.
//
// The archive resolution and extraction machinery lives in the archive,
// match, extract, and archive/repository packages; this package is the
// composition root that wires their default implementations together and
// adds Settings, Status, and the lifecycle controller.
package pgembed

import (
	"errors"
	"fmt"

	"github.com/pgembed/pgembed/internal/runner"
)

// CommandError reports a PostgreSQL tool invocation that exited non-zero,
// carrying its captured stdout and stderr. Aliased from internal/runner
// so callers can errors.As against it without importing an internal
// package.
type CommandError = runner.CommandError

// TimeoutError reports a PostgreSQL tool invocation killed for exceeding
// its deadline, preserving partial output.
type TimeoutError = runner.TimeoutError

// Sentinel error kinds, matched with errors.Is. Several wrap structured
// detail (CommandError, TimeoutError) defined in internal/runner and
// re-exported here as type aliases so callers never need to import an
// internal package to use errors.As.
var (
	// ErrInitializationFailed reports an initdb failure.
	ErrInitializationFailed = errors.New("pgembed: initialization failed")
	// ErrStartFailed reports a failure transitioning Stopped -> Started.
	ErrStartFailed = errors.New("pgembed: start failed")
	// ErrStopFailed reports a failure transitioning Started -> Stopped.
	ErrStopFailed = errors.New("pgembed: stop failed")
	// ErrExtensionNotFound reports an unknown (namespace, name) pair.
	ErrExtensionNotFound = errors.New("pgembed: extension not found")
	// ErrUnsupportedNamespace reports no registered repository for a
	// namespace.
	ErrUnsupportedNamespace = errors.New("pgembed: unsupported extension namespace")
	// ErrIO wraps a generic file/socket error, preserving the underlying
	// OS error via %w.
	ErrIO = errors.New("pgembed: io error")
	// ErrNotInstalled reports an operation (start, create database, ...)
	// attempted before setup() has installed binaries.
	ErrNotInstalled = errors.New("pgembed: not installed")
)

// wrapIO wraps err as an *Io-kind error if non-nil, preserving the
// original message and allowing errors.Is(err, ErrIO).
func wrapIO(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", context, ErrIO, err)
}
