package render

import (
	"io"

	"github.com/hctx-dev/hctx/pkg/vdom"
)

// PageData contains everything needed to render a complete HTML page.
type PageData struct {
	// Body is rendered inside <body>. A <body> root renders its children
	// only.
	Body *vdom.VNode

	Title string

	Meta []MetaTag

	// StyleSheets are paths to external stylesheets.
	StyleSheets []string

	// Styles are inline CSS blocks.
	Styles []string

	// Scripts are appended at the end of the body.
	Scripts []ScriptTag

	// Lang defaults to "en".
	Lang string
}

// MetaTag represents a meta element in the document head.
type MetaTag struct {
	Name    string
	Content string
}

// ScriptTag represents a script element.
type ScriptTag struct {
	Src    string
	Module bool
	Defer  bool
	Inline string
}

// RenderPage renders a complete HTML document to w.
func (r *Renderer) RenderPage(w io.Writer, page PageData) error {
	ew := &errWriter{w: w}
	r.renderPrologue(ew, page)
	r.renderBody(ew, page)
	r.renderEpilogue(ew, page)
	return ew.err
}

func (r *Renderer) renderPrologue(w *errWriter, page PageData) {
	lang := page.Lang
	if lang == "" {
		lang = "en"
	}
	w.write("<!DOCTYPE html>\n")
	w.printf(`<html lang="%s">`+"\n", escapeAttr(lang))
	w.write("<head>\n")
	w.write(`  <meta charset="utf-8">` + "\n")
	w.write(`  <meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	if page.Title != "" {
		w.printf("  <title>%s</title>\n", escapeHTML(page.Title))
	}
	for _, m := range page.Meta {
		w.printf(`  <meta name="%s" content="%s">`+"\n", escapeAttr(m.Name), escapeAttr(m.Content))
	}
	for _, href := range page.StyleSheets {
		w.printf(`  <link rel="stylesheet" href="%s">`+"\n", escapeAttr(href))
	}
	for _, style := range page.Styles {
		w.printf("  <style>%s</style>\n", style)
	}
	w.write("</head>\n")
}

func (r *Renderer) renderBody(w *errWriter, page PageData) {
	w.write("<body>\n")
	if page.Body == nil {
		return
	}
	if page.Body.Kind == vdom.KindElement && page.Body.Tag == "body" {
		for _, child := range page.Body.Children() {
			if w.err != nil {
				return
			}
			w.err = r.RenderToWriter(w.w, child)
		}
		return
	}
	if w.err == nil {
		w.err = r.RenderToWriter(w.w, page.Body)
	}
}

func (r *Renderer) renderEpilogue(w *errWriter, page PageData) {
	for _, s := range page.Scripts {
		w.write("<script")
		if s.Src != "" {
			w.printf(` src="%s"`, escapeAttr(s.Src))
		}
		if s.Module {
			w.write(` type="module"`)
		}
		if s.Defer {
			w.write(" defer")
		}
		w.write(">" + s.Inline + "</script>\n")
	}
	w.write("</body>\n</html>\n")
}
