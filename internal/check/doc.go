// Package check finds markup problems that would make binding fail: bad
// attribute grammar, circular action triggers, handlers outside any
// context and references to contexts that have no marker in the file.
//
// Templates are never loaded, so unknown action and effect names are not
// reported.
package check
