// Package render serializes vdom trees to HTML.
//
// It is used by the hctx CLI and devtools to show the live state of a
// document: markers, bound attributes and text written by effects.
//
//	renderer := render.NewRenderer(render.RendererConfig{Pretty: true})
//	html, err := renderer.RenderToString(doc.Body())
//
// Rendering works on a snapshot of the tree, so it is safe while a runtime
// is dispatching. Text and attribute values are escaped; attributes are
// written in sorted order so output is stable.
//
// # Full Page Rendering
//
//	err := renderer.RenderPage(w, render.PageData{
//	    Title: "Contexts",
//	    Body:  doc.Body(),
//	})
//
// StreamingRenderer does the same and flushes the head before the body when
// the writer is an http.Flusher.
package render
