// Package devtools serves a running hctx runtime over HTTP for inspection.
//
// A Hub records finished dispatches and streams them to websocket clients.
// Register it as an observer and hand it to the server:
//
//	hub := devtools.NewHub(0)
//	rt := hctx.New(doc, hctx.Config{
//	    Observers: []hctx.Observer{hub, middleware.Prometheus()},
//	})
//	srv := devtools.New(rt, doc, devtools.Config{Hub: hub})
//	err := srv.ListenAndServe(ctx, "127.0.0.1:7331")
//
// The server exposes the runtime snapshot, the annotated document tree,
// Prometheus metrics and the dispatch stream.
package devtools
