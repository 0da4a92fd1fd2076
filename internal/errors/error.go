package errors

import (
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryGrammar  Category = "grammar"
	CategoryBinding  Category = "binding"
	CategoryDispatch Category = "dispatch"
	CategoryImport   Category = "import"
	CategoryConfig   Category = "config"
	CategoryCLI      Category = "cli"
)

// Location represents a position in a markup or config file.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	switch {
	case l.Line <= 0:
		return l.File
	case l.Column > 0:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	default:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
}

// Error is a catalogued error with optional markup context.
type Error struct {
	// Code is a unique error identifier (e.g., "H001").
	Code string `json:"code,omitempty"`

	Category Category `json:"category"`

	// Message is a short description of the error.
	Message string `json:"message"`

	// Detail is a longer explanation of the error.
	Detail string `json:"detail,omitempty"`

	Location *Location `json:"location,omitempty"`

	// Node describes the markup node involved, e.g. "<button#inc>".
	Node string `json:"node,omitempty"`

	// Attr is the offending attribute value.
	Attr string `json:"attr,omitempty"`

	// Suggestion is a hint on how to fix the error.
	Suggestion string `json:"suggestion,omitempty"`

	// Wrapped is the underlying error, if any.
	Wrapped error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds a file location to the error.
func (e *Error) WithLocation(file string, line, column int) *Error {
	e.Location = &Location{File: file, Line: line, Column: column}
	return e
}

// WithNode records the markup node involved.
func (e *Error) WithNode(node string) *Error {
	e.Node = node
	return e
}

// WithAttr records the offending attribute value.
func (e *Error) WithAttr(attr string) *Error {
	e.Attr = attr
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail replaces the catalogue explanation.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// New creates an Error from a registered code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates an uncatalogued Error with a formatted message.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err in a catalogued Error. Errors that already carry an
// *Error (directly or through a Catalogued implementation) are returned as is.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	if c, ok := err.(Catalogued); ok {
		return c.Catalogue()
	}
	return New(code).Wrap(err)
}

// Catalogued is implemented by typed errors that can describe themselves as
// a catalogue entry.
type Catalogued interface {
	error
	Catalogue() *Error
}
