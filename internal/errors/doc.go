// Package errors provides the structured error catalogue for hctx.
//
// Each error has a code (e.g. "H002") that maps to a category, a short
// message and a longer explanation. Engine errors embed a catalogue entry so
// the CLI and devtools can print them consistently.
//
// # Error Categories
//
//   - grammar: malformed action/effect attribute values
//   - binding: unknown contexts, actions or effects at resolution time
//   - dispatch: failures while running handlers or middleware
//   - import: template loading failures
//   - config: invalid project configuration
//
// # Usage
//
//	err := errors.New("H002").
//	    WithNode("<button#inc>").
//	    WithAttr("incremnt on click").
//	    WithSuggestion(`did you mean "increment"?`)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR H002: Unknown action
//	//
//	//   at <button#inc>
//	//   in "incremnt on click"
//	//
//	//   The attribute names an action the context template does not declare.
//	//
//	//   Hint: did you mean "increment"?
package errors
