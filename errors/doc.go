// Package errors provides structured error types for the script-host library.
//
// Errors are categorized by Phase (which component raised the error) and Kind
// (error category). The Error type carries a detail message, an optional path
// (a file or channel name), the offending value and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDeploy, errors.KindDeploymentFailure).
//		Path("workspace", "main.js").
//		Detail("copy asset").
//		Cause(ioErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AlreadyRunning()
//	err := errors.DecodeFailure("_EVENTS_", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two errors match under errors.Is when their phase and kind match, so the
// package-level sentinels can be used directly:
//
//	if errors.Is(err, errors.ErrAlreadyRunning) { ... }
package errors
