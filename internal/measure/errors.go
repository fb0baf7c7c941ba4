package measure

import "errors"

var (
	// ErrUnavailable means no bundling capability is wired; distinct
	// from a failed measurement and never negative-cached.
	ErrUnavailable = errors.New("no bundling capability available")

	// ErrBundlerPanic marks a measurement aborted by a panic inside the
	// bundling capability.
	ErrBundlerPanic = errors.New("bundler panicked")
)
