package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hctx-dev/hctx/pkg/hctx"
	"github.com/hctx-dev/hctx/pkg/middleware"
	"github.com/hctx-dev/hctx/pkg/reactive"
	"github.com/hctx-dev/hctx/pkg/vdom"
)

type fixture struct {
	rt  *hctx.Runtime
	doc *vdom.Document
	hub *Hub
	srv *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	doc := vdom.NewDocument(vdom.Body(
		vdom.Div(vdom.Ctx("counter#main"),
			vdom.Button(vdom.ID("inc"), vdom.Action("increment on click")),
			vdom.Span(vdom.ID("out"), vdom.Effect("render on a:increment")),
		),
	))
	hub := NewHub(2)
	reg := prometheus.NewRegistry()
	rt := hctx.New(doc, hctx.Config{
		Logger:    logger,
		Observers: []hctx.Observer{hub, middleware.Prometheus(middleware.WithRegistry(reg))},
	})
	rt.Register("counter", func() hctx.Template {
		return hctx.Template{
			Data: map[string]any{"count": 0},
			Actions: map[string]hctx.Action{
				"increment": {Handle: func(ac *hctx.ActionContext) error {
					n, _ := reactive.Number(ac.Data, "count")
					return ac.Data.Set("count", n+1)
				}},
			},
			Effects: map[string]hctx.Effect{
				"render": {Handle: func(ec *hctx.EffectContext) error {
					n, _ := reactive.Number(ec.Data, "count")
					ec.Element.(*vdom.VNode).SetText(fmt.Sprint(n))
					return nil
				}},
			},
		}
	})
	require.NoError(t, rt.Start(context.Background()))
	t.Cleanup(rt.Stop)

	srv := New(rt, doc, Config{Hub: hub, Gatherer: reg, Logger: logger})
	return &fixture{rt: rt, doc: doc, hub: hub, srv: srv}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestContextsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.doc.GetElementByID("inc").Click()

	rec := f.get(t, "/debug/contexts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap hctx.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Contexts, 1)
	assert.Equal(t, "counter#main", snap.Contexts[0].Key)
	assert.Equal(t, "main", snap.Contexts[0].Tag)
	assert.Equal(t, float64(1), snap.Contexts[0].Data["count"])
	assert.Equal(t, 2, snap.BoundNodes)
	assert.True(t, snap.Started)
}

func TestTreeEndpoint(t *testing.T) {
	f := newFixture(t)
	f.doc.GetElementByID("inc").Click()

	rec := f.get(t, "/debug/tree?pretty=0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `<div hctx="counter#main" data-hc-instance="counter#main">`)
	assert.Contains(t, body, `<button hc-action="increment on click" id="inc" data-hc-bound="">`)
	assert.Contains(t, body, `<span hc-effect="render on a:increment" id="out" data-hc-bound="">1</span>`)
}

func TestDispatchesEndpoint(t *testing.T) {
	f := newFixture(t)
	for range 3 {
		f.doc.GetElementByID("inc").Click()
	}

	rec := f.get(t, "/debug/dispatches")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	// History is capped at two. Each click finishes the effect and then
	// the action.
	require.Len(t, records, 2)
	assert.Equal(t, uint64(5), records[0].Seq)
	assert.Equal(t, uint64(6), records[1].Seq)
	assert.Equal(t, hctx.KindEffect, records[0].Info.Kind)
	assert.Equal(t, "render", records[0].Info.Name)
	assert.Equal(t, hctx.KindAction, records[1].Info.Kind)
	assert.Equal(t, "increment", records[1].Info.Name)
	assert.Equal(t, "counter#main", records[1].Info.Context)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.doc.GetElementByID("inc").Click()

	rec := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hctx_dispatches_total{context="counter#main",kind="action",outcome="completed"} 1`)
}

func TestIndexAndNoHub(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/debug/events"`)

	bare := New(f.rt, f.doc, Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	for _, path := range []string{"/debug/dispatches", "/debug/events"} {
		rec := httptest.NewRecorder()
		bare.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestEventsWebSocket(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/debug/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	f.doc.GetElementByID("inc").Click()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first, second Record
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	// The effect runs inside the action's after-notification, so it
	// finishes first.
	assert.Equal(t, "render", first.Info.Name)
	assert.Equal(t, "increment", second.Info.Name)
	assert.Equal(t, hctx.OutcomeCompleted, second.Outcome)
	assert.Equal(t, "<button#inc>", second.Node)

	conn.Close()
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/debug/contexts")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
