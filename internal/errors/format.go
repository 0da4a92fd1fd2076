package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// colorEnabled controls whether ANSI colors are used. fatih/color still
// disables them on its own when the output is not a terminal.
var colorEnabled = true

// DisableColors disables ANSI color output.
func DisableColors() {
	colorEnabled = false
}

// EnableColors enables ANSI color output.
func EnableColors() {
	colorEnabled = true
}

func paint(text string, attrs ...color.Attribute) string {
	if !colorEnabled {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

func red(text string) string  { return paint(text, color.FgRed, color.Bold) }
func cyan(text string) string { return paint(text, color.FgCyan) }
func gray(text string) string { return paint(text, color.FgHiBlack) }
func bold(text string) string { return paint(text, color.Bold) }

// Format returns a multi-line error message for terminal display.
func (e *Error) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(red("ERROR "))
		b.WriteString(bold(e.Code + ": "))
	} else {
		b.WriteString(red("ERROR: "))
	}
	b.WriteString(e.Message)
	b.WriteString("\n\n")

	if e.Location != nil || e.Node != "" || e.Attr != "" {
		if e.Location != nil {
			b.WriteString("  ")
			b.WriteString(cyan(e.Location.String()))
			b.WriteString("\n")
		}
		if e.Node != "" {
			b.WriteString("  at ")
			b.WriteString(cyan(e.Node))
			b.WriteString("\n")
		}
		if e.Attr != "" {
			b.WriteString("  in ")
			b.WriteString(fmt.Sprintf("%q", e.Attr))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Wrapped != nil {
		b.WriteString("  ")
		b.WriteString(gray("cause: "))
		b.WriteString(e.Wrapped.Error())
		b.WriteString("\n\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(cyan("Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n\n")
	}

	return b.String()
}

// FormatCompact returns a single-line error format.
func (e *Error) FormatCompact() string {
	var b strings.Builder

	if e.Location != nil {
		b.WriteString(e.Location.String())
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Node != "" {
		b.WriteString(" at ")
		b.WriteString(e.Node)
	}
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

// FormatJSON returns the error as a JSON object.
func (e *Error) FormatJSON() string {
	type out struct {
		*Error
		Cause string `json:"cause,omitempty"`
	}
	o := out{Error: e}
	if e.Wrapped != nil {
		o.Cause = e.Wrapped.Error()
	}
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Message)
	}
	return string(b)
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// Fprint writes err to w, formatted when it is catalogued.
func Fprint(w io.Writer, err error) {
	if e := asError(err); e != nil {
		fmt.Fprint(w, e.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", red("ERROR:"), err.Error())
}

func asError(err error) *Error {
	switch e := err.(type) {
	case *Error:
		return e
	case Catalogued:
		return e.Catalogue()
	}
	return nil
}
