package render

import (
	"io"
	"net/http"
)

// StreamingRenderer wraps Renderer with chunked output. If the writer
// implements http.Flusher, the head is flushed before the body renders.
type StreamingRenderer struct {
	*Renderer
	flusher http.Flusher
	w       io.Writer
}

// NewStreamingRenderer creates a streaming renderer writing to w.
func NewStreamingRenderer(w io.Writer, config RendererConfig) *StreamingRenderer {
	flusher, _ := w.(http.Flusher)
	return &StreamingRenderer{
		Renderer: NewRenderer(config),
		flusher:  flusher,
		w:        w,
	}
}

// RenderPage renders a complete document, flushing after the head and
// after the body.
func (s *StreamingRenderer) RenderPage(page PageData) error {
	ew := &errWriter{w: s.w}
	s.renderPrologue(ew, page)
	s.flush(ew)
	s.renderBody(ew, page)
	s.flush(ew)
	s.renderEpilogue(ew, page)
	s.flush(ew)
	return ew.err
}

func (s *StreamingRenderer) flush(w *errWriter) {
	if s.flusher != nil && w.err == nil {
		s.flusher.Flush()
	}
}
