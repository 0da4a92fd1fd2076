// Package middleware provides production observers and gates for hctx
// runtimes.
//
// This package includes:
//   - OpenTelemetry tracing, one span per dispatch
//   - Prometheus dispatch metrics
//   - Logging and Throttle gate middleware
//
// # OpenTelemetry
//
// The tracer is an hctx.Observer. Each dispatch that passes the running
// guard gets a span with the handler kind, context name, handler name and
// trigger. Async handlers receive the span context:
//
//	rt := hctx.New(doc, hctx.Config{
//	    Observers: []hctx.Observer{
//	        middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	    },
//	})
//
// # Prometheus Metrics
//
// The metrics observer records:
//   - hctx_dispatches_total: dispatches by kind, context and outcome
//   - hctx_dispatch_duration_seconds: dispatch duration histogram
//   - hctx_dispatch_errors_total: failures by error type
//   - hctx_dispatches_inflight: running dispatches
//
//	rt := hctx.New(doc, hctx.Config{
//	    Observers: []hctx.Observer{middleware.Prometheus()},
//	})
//	http.Handle("/metrics", promhttp.Handler())
//
// # Gates
//
// Logging and Throttle return *hctx.Middleware values for template options:
//
//	hctx.Template{
//	    Options: hctx.Options{Middleware: []*hctx.Middleware{
//	        middleware.Logging(logger, slog.LevelDebug),
//	    }},
//	    ActionOptions: hctx.ActionOptions{Middleware: []*hctx.Middleware{
//	        middleware.Throttle(5, 1),
//	    }},
//	}
package middleware
