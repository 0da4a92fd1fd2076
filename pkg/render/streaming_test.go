package render

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hctx-dev/hctx/pkg/vdom"
)

func TestStreamingRendererRenderPage(t *testing.T) {
	w := httptest.NewRecorder()
	sr := NewStreamingRenderer(w, RendererConfig{})

	err := sr.RenderPage(PageData{
		Body:  vdom.Div(vdom.Text("Streamed Content")),
		Title: "Streaming Test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	html := w.Body.String()
	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Errorf("should start with DOCTYPE")
	}
	if !strings.Contains(html, "<title>Streaming Test</title>") {
		t.Errorf("should contain title")
	}
	if !strings.Contains(html, "<div>Streamed Content</div>") {
		t.Errorf("should contain body content")
	}
	if !w.Flushed {
		t.Error("recorder should have been flushed")
	}
}

type countingFlushWriter struct {
	strings.Builder
	Flushes int
}

func (w *countingFlushWriter) Flush() { w.Flushes++ }

func TestStreamingRendererFlushes(t *testing.T) {
	w := &countingFlushWriter{}
	if err := NewStreamingRenderer(w, RendererConfig{}).RenderPage(PageData{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Flushes != 3 {
		t.Errorf("flushes = %d, want 3", w.Flushes)
	}
}

func TestStreamingRendererStopsFlushingOnError(t *testing.T) {
	w := &failingWriter{FailAt: 1}
	err := NewStreamingRenderer(w, RendererConfig{}).RenderPage(PageData{})
	if err == nil {
		t.Fatal("expected write error")
	}
}
