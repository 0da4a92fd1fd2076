package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hctx-dev/hctx/pkg/hctx"
)

// Default tracer name for hctx runtimes.
const defaultTracerName = "hctx"

// OTelConfig configures the OpenTelemetry observer.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "hctx").
	TracerName string

	// IncludeTrigger records the trigger string on spans.
	// Enabled by default.
	IncludeTrigger bool

	// Filter determines which dispatches to trace.
	// Return true to trace the dispatch, false to skip.
	// If nil, all dispatches are traced.
	Filter func(info hctx.DispatchInfo) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(info hctx.DispatchInfo) []attribute.KeyValue

	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider
}

// OTelOption configures the OpenTelemetry observer.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeTrigger enables/disables the trigger attribute.
func WithIncludeTrigger(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeTrigger = include
	}
}

// WithDispatchFilter sets a filter function for dispatches.
func WithDispatchFilter(filter func(info hctx.DispatchInfo) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(info hctx.DispatchInfo) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:     defaultTracerName,
		IncludeTrigger: true,
	}
}

// Tracer is an hctx.Observer that opens one span per dispatch.
type Tracer struct {
	config OTelConfig
	tracer trace.Tracer
}

var _ hctx.Observer = (*Tracer)(nil)

// OpenTelemetry returns an observer that traces every dispatch.
//
// The span starts when the dispatch passes the running guard and ends when
// the handler and its after-notifications are done. The span context is
// handed to async handlers, so ActionContext.Context() carries the trace:
//
//	"fetch": {HandleAsync: func(ctx context.Context, ac *hctx.ActionContext) error {
//	    req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
//	    ...
//	}}
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given.
func OpenTelemetry(opts ...OTelOption) *Tracer {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	t := &Tracer{config: config}
	if config.TracerProvider != nil {
		t.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		t.tracer = otel.Tracer(config.TracerName)
	}
	return t
}

// spanKey marks spans opened by a Tracer, so DispatchEnd never ends a span
// it did not start.
type spanKey struct{}

// DispatchStart implements hctx.Observer.
func (t *Tracer) DispatchStart(ctx context.Context, info hctx.DispatchInfo) context.Context {
	if t.config.Filter != nil && !t.config.Filter(info) {
		return ctx
	}

	attrs := []attribute.KeyValue{
		attribute.String("hctx.kind", string(info.Kind)),
		attribute.String("hctx.context", info.Context),
		attribute.String("hctx.handler", info.Name),
		attribute.Bool("hctx.async", info.Async),
	}
	if t.config.IncludeTrigger {
		attrs = append(attrs, attribute.String("hctx.trigger", info.Trigger))
	}
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(info)...)
	}

	spanCtx, span := t.tracer.Start(ctx, spanName(info),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return context.WithValue(spanCtx, spanKey{}, span)
}

// DispatchEnd implements hctx.Observer.
func (t *Tracer) DispatchEnd(ctx context.Context, _ hctx.DispatchInfo, res hctx.Result) {
	span := SpanFromContext(ctx)
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String("hctx.outcome", string(res.Outcome)))
	if res.Outcome == hctx.OutcomeFailed && res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// SpanFromContext returns the dispatch span opened by a Tracer, or nil.
//
// Example:
//
//	"save": {HandleAsync: func(ctx context.Context, ac *hctx.ActionContext) error {
//	    if span := middleware.SpanFromContext(ctx); span != nil {
//	        span.SetAttributes(attribute.Int("rows", n))
//	    }
//	    return nil
//	}}
func SpanFromContext(ctx context.Context) trace.Span {
	if span, ok := ctx.Value(spanKey{}).(trace.Span); ok {
		return span
	}
	return nil
}

func spanName(info hctx.DispatchInfo) string {
	return fmt.Sprintf("hctx.%s %s", info.Kind, info.Name)
}
