package hctx

import (
	"errors"
	"fmt"

	herrors "github.com/hctx-dev/hctx/internal/errors"
	"github.com/hctx-dev/hctx/pkg/host"
	"github.com/hctx-dev/hctx/pkg/reactive"
	"github.com/hctx-dev/hctx/pkg/trigger"
)

// Sentinel errors.
var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("hctx: runtime already started")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("hctx: runtime stopped")
)

// WriteGuardError is returned when an effect writes through a guarded view.
type WriteGuardError = reactive.WriteGuardError

// ResolutionKind says what could not be resolved.
type ResolutionKind string

const (
	UnknownContext ResolutionKind = "context"
	UnknownAction  ResolutionKind = "action"
	UnknownEffect  ResolutionKind = "effect"
	OutsideContext ResolutionKind = "node"
	InvalidHandler ResolutionKind = "handler"
)

// ResolutionError reports a name that does not resolve at bind time.
type ResolutionError struct {
	Kind    ResolutionKind
	Name    string
	Context string
	Reason  string
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case UnknownContext:
		return fmt.Sprintf("hctx: unknown context template %q", e.Name)
	case OutsideContext:
		return "hctx: node is not inside any context"
	case InvalidHandler:
		return fmt.Sprintf("hctx: invalid definition of %q in context %q: %s", e.Name, e.Context, e.Reason)
	default:
		return fmt.Sprintf("hctx: %s %q does not exist in context %q", e.Kind, e.Name, e.Context)
	}
}

// Catalogue implements errors.Catalogued.
func (e *ResolutionError) Catalogue() *herrors.Error {
	code := herrors.CodeUnknownAction
	switch e.Kind {
	case UnknownContext:
		code = herrors.CodeUnknownContext
	case UnknownEffect:
		code = herrors.CodeUnknownEffect
	case OutsideContext:
		code = herrors.CodeOutsideContext
	case InvalidHandler:
		code = herrors.CodeInvalidHandler
	}
	return herrors.New(code).Wrap(e)
}

// CircularTriggerError reports an action triggered by an action declared in
// the same attribute.
type CircularTriggerError struct {
	Handler string
	Trigger string
}

func (e *CircularTriggerError) Error() string {
	return fmt.Sprintf("hctx: circular action: %q is triggered by %q", e.Handler, e.Trigger)
}

// Catalogue implements errors.Catalogued.
func (e *CircularTriggerError) Catalogue() *herrors.Error {
	return herrors.New(herrors.CodeCircularTrigger).Wrap(e)
}

// MiddlewareTypeError reports a middleware entry that is nil or was not
// built with NewMiddleware or NewAsyncMiddleware.
type MiddlewareTypeError struct {
	Handler string
	Index   int
}

func (e *MiddlewareTypeError) Error() string {
	return fmt.Sprintf("hctx: middleware %d of %q must be created with NewMiddleware or NewAsyncMiddleware", e.Index, e.Handler)
}

// Catalogue implements errors.Catalogued.
func (e *MiddlewareTypeError) Catalogue() *herrors.Error {
	return herrors.New(herrors.CodeInvalidMiddleware).Wrap(e)
}

// BindError wraps a failure to bind one node. The underlying error is one
// of *ResolutionError, *CircularTriggerError, *MiddlewareTypeError or
// *trigger.SyntaxError.
type BindError struct {
	Node host.Node
	Attr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("%v (at %s)", e.Err, describe(e.Node))
}

func (e *BindError) Unwrap() error { return e.Err }

// Catalogue implements errors.Catalogued.
func (e *BindError) Catalogue() *herrors.Error {
	var c *herrors.Error
	var se *trigger.SyntaxError
	if errors.As(e.Err, &se) {
		c = herrors.New(herrors.CodeSyntax).Wrap(se)
	} else {
		c = herrors.FromError(e.Err, herrors.CodeInvalidHandler)
	}
	return c.WithNode(describe(e.Node)).WithAttr(e.Attr)
}

// HandlerError wraps an error returned by a handler or middleware.
type HandlerError struct {
	Kind    Kind
	Context string
	Name    string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("hctx: %s %s@%s: %v", e.Kind, e.Name, e.Context, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Catalogue implements errors.Catalogued.
func (e *HandlerError) Catalogue() *herrors.Error {
	var wg *WriteGuardError
	if errors.As(e.Err, &wg) {
		return herrors.New(herrors.CodeWriteGuard).Wrap(e)
	}
	var pe *PanicError
	if errors.As(e.Err, &pe) {
		return herrors.New(herrors.CodeHandlerPanicked).Wrap(e)
	}
	return herrors.New(herrors.CodeHandlerFailed).Wrap(e)
}

// PanicError is a panic recovered from an async handler or middleware.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("hctx: async handler panicked: %v", e.Value)
}

func describe(n host.Node) string {
	if n == nil {
		return "<nil>"
	}
	if s, ok := n.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", n)
}
