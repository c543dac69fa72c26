// Package supervisor starts the script runtime and tracks its lifecycle.
//
// # States
//
//	Idle ──Track(closed gate)──▶ Deploying ──gate opens──▶ Ready
//	  │                              │                        │
//	  └──────────── start ───────────┴──────── start ─────────┘
//	                                 ▼
//	                              Running ──exit──▶ Exited
//
// Only one runtime may run per supervisor, and only once. A start while
// Running or Exited fails at once with errors.ErrAlreadyRunning; starts are
// never queued. A start
// accepted before deployment finishes waits on the gate in its own
// goroutine, so the caller never blocks.
//
// # Results
//
// Every accepted start returns a Handle. The exit code arrives through
// Handle.Wait and, when Options.OnExit is set, through a callback posted on
// the configured Looper. A non-zero code is reported as *errors.ExitError.
//
// # Service Variant
//
// Service wraps a start with a user-visible notification. It needs the
// notification permission; without it the permission is requested and the
// start fails with errors.ErrPermissionDenied.
package supervisor
