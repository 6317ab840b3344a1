package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRewrite Phase = "rewrite" // source classification and rewriting
	PhaseCompile Phase = "compile" // async function construction
	PhaseExec    Phase = "exec"    // script execution
	PhaseBus     Phase = "bus"     // event fan-out
	PhaseStage   Phase = "stage"   // sprite/stage operations
	PhaseServe   Phase = "serve"   // websocket transport
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidSource     Kind = "invalid_source"
	KindEmptyLoop         Kind = "empty_loop"
	KindUndeclaredVar     Kind = "undeclared_variable"
	KindScriptThrow       Kind = "script_throw"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindClosed            Kind = "closed"
	KindNotStarted        Kind = "not_started"
	KindInterrupted       Kind = "interrupted"
	KindInvalidListener   Kind = "invalid_listener"
	KindCompilationFailed Kind = "compilation_failed"
)

// Error is the structured error type used throughout the engine
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Entity string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Entity != "" {
		b.WriteString(" on ")
		b.WriteString(e.Entity)
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

// Entity names the sprite or stage the error belongs to
func (b *Builder) Entity(name string) *Builder {
	b.err.Entity = name
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

// InvalidSource creates an error for learner source the rewriter cannot shape
func InvalidSource(detail string) *Error {
	return &Error{
		Phase:  PhaseRewrite,
		Kind:   KindInvalidSource,
		Detail: detail,
	}
}

// UndeclaredVariable creates the error raised when a captured-result variable
// was never declared in accessible scope
func UndeclaredVariable(name string) *Error {
	return &Error{
		Phase:  PhaseExec,
		Kind:   KindUndeclaredVar,
		Detail: fmt.Sprintf("variable %q was never declared in accessible scope", name),
	}
}

// CompileFailed wraps a runtime syntax error from rewritten code
func CompileFailed(cause error) *Error {
	return &Error{
		Phase: PhaseCompile,
		Kind:  KindCompilationFailed,
		Cause: cause,
	}
}

// ScriptThrow wraps a value thrown by the learner's script
func ScriptThrow(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseExec,
		Kind:   KindScriptThrow,
		Detail: detail,
		Cause:  cause,
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

// Closed creates an error for operations on a closed component
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", component),
	}
}

// NotStarted creates an error for operations before Start
func NotStarted(component string) *Error {
	return &Error{
		Phase:  PhaseExec,
		Kind:   KindNotStarted,
		Detail: fmt.Sprintf("%s not started", component),
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
