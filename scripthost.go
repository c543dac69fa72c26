package scripthost

import "context"

// Invocation is one call into the native process boundary.
type Invocation struct {
	// Env holds extra environment variables for the runtime process.
	Env map[string]string
	// ModulePath is the module search path, list-separator joined.
	ModulePath string
	// Args is the full argv, including the interpreter name at index 0.
	Args []string
	// RedirectOutput mirrors stdout/stderr to the host log sink when set.
	RedirectOutput bool
}

// Boundary runs the script interpreter. Run blocks until the interpreter
// returns and reports its exit code. Single-instance rules are enforced by
// callers, never inside a Boundary.
type Boundary interface {
	Run(ctx context.Context, inv Invocation) (int, error)
}

// BoundaryFunc adapts a function to the Boundary interface.
type BoundaryFunc func(ctx context.Context, inv Invocation) (int, error)

// Run calls f(ctx, inv).
func (f BoundaryFunc) Run(ctx context.Context, inv Invocation) (int, error) {
	return f(ctx, inv)
}

// Looper posts callbacks onto the host's primary execution context.
// Host-visible state is assumed single-threaded, so exit codes and bridged
// messages are always delivered through a Looper.
type Looper interface {
	Post(fn func())
}

// LooperFunc adapts a function to the Looper interface.
type LooperFunc func(fn func())

// Post calls f(fn).
func (f LooperFunc) Post(fn func()) {
	f(fn)
}
