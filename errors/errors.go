package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which component raised the error
type Phase string

const (
	PhaseAssets     Phase = "assets"     // bundle access
	PhaseStore      Phase = "store"      // persisted key-value state
	PhaseDeploy     Phase = "deploy"     // workspace synchronization
	PhaseGate       Phase = "gate"       // init gate waits
	PhaseBridge     Phase = "bridge"     // channel encode/dispatch
	PhaseSupervisor Phase = "supervisor" // runtime start/exit
	PhaseService    Phase = "service"    // long-lived service wrapper
	PhaseBoundary   Phase = "boundary"   // native process boundary
	PhaseConfig     Phase = "config"     // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindDeploymentFailure Kind = "deployment_failure"
	KindAlreadyRunning    Kind = "already_running"
	KindPermissionDenied  Kind = "permission_denied"
	KindDecodeFailure     Kind = "decode_failure"
	KindProcessExit       Kind = "process_exit"
	KindDispatch          Kind = "dispatch"
	KindEncode            Kind = "encode"
	KindInterrupted       Kind = "interrupted"
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindNotInitialized    Kind = "not_initialized"
	KindIO                Kind = "io"
)

// Sentinels for errors.Is checks.
var (
	ErrAlreadyRunning   = &Error{Phase: PhaseSupervisor, Kind: KindAlreadyRunning}
	ErrPermissionDenied = &Error{Phase: PhaseService, Kind: KindPermissionDenied}
	ErrDecodeFailure    = &Error{Phase: PhaseBridge, Kind: KindDecodeFailure}
	ErrProcessExit      = &Error{Phase: PhaseSupervisor, Kind: KindProcessExit}
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "/"))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the path (file segments or channel name)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// DeploymentFailure creates a per-file deployment error
func DeploymentFailure(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseDeploy,
		Kind:   KindDeploymentFailure,
		Path:   []string{path},
		Detail: "copy asset",
		Cause:  cause,
	}
}

// AlreadyRunning creates the error returned for a start while a runtime is live
func AlreadyRunning() *Error {
	return &Error{
		Phase:  PhaseSupervisor,
		Kind:   KindAlreadyRunning,
		Detail: "runtime is already running",
	}
}

// PermissionDenied creates a missing OS grant error
func PermissionDenied(permission string) *Error {
	return &Error{
		Phase:  PhaseService,
		Kind:   KindPermissionDenied,
		Detail: fmt.Sprintf("%s permission not granted", permission),
		Value:  permission,
	}
}

// DecodeFailure creates a malformed inbound envelope error
func DecodeFailure(channel string, cause error) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindDecodeFailure,
		Path:   []string{channel},
		Detail: "malformed envelope",
		Cause:  cause,
	}
}

// Dispatch creates an error for a listener that failed while handling a message
func Dispatch(topic string, recovered any) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindDispatch,
		Path:   []string{topic},
		Detail: fmt.Sprintf("listener failed: %v", recovered),
		Value:  recovered,
	}
}

// Encode creates an outbound serialization error
func Encode(channel string, cause error) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindEncode,
		Path:   []string{channel},
		Detail: "serialize message",
		Cause:  cause,
	}
}

// Interrupted creates an error for a wait that was cut short
func Interrupted(phase Phase, what string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInterrupted,
		Detail: fmt.Sprintf("%s interrupted", what),
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error for missing components
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// IO wraps a filesystem or storage failure
func IO(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ExitError reports a runtime that returned a non-zero exit code.
// It is delivered as a result value, never raised asynchronously.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("[%s] %s: exit code %d", PhaseSupervisor, KindProcessExit, e.Code)
}

// Is reports whether target matches this error type
func (e *ExitError) Is(target error) bool {
	if _, ok := target.(*ExitError); ok {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Phase == PhaseSupervisor && t.Kind == KindProcessExit
	}
	return false
}

// ProcessExit returns nil for a zero exit code and an *ExitError otherwise
func ProcessExit(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}
