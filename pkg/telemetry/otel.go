package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wayfind-go/wayfind/pkg/router"
)

// Default tracer name for wayfind applications.
const defaultTracerName = "wayfind"

// TracerConfig configures the OpenTelemetry observer.
type TracerConfig struct {
	// TracerName is the name of the tracer (default: "wayfind").
	TracerName string

	// IncludeQuery includes the full href (query string and all) in
	// spans. Query strings may carry sensitive values - disabled by
	// default, recording only the pathname.
	IncludeQuery bool

	// Filter determines which resolutions to trace.
	// Return true to trace the resolution, false to skip.
	// If nil, all resolutions are traced.
	Filter func(href string) bool

	// Provider is the tracer provider to use.
	// Default: the global otel.GetTracerProvider().
	Provider trace.TracerProvider
}

// TracerOption configures the OpenTelemetry observer.
type TracerOption func(*TracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *TracerConfig) {
		c.TracerName = name
	}
}

// WithIncludeQuery enables recording full hrefs including query strings.
func WithIncludeQuery(include bool) TracerOption {
	return func(c *TracerConfig) {
		c.IncludeQuery = include
	}
}

// WithResolveFilter sets a filter function for resolutions.
func WithResolveFilter(filter func(href string) bool) TracerOption {
	return func(c *TracerConfig) {
		c.Filter = filter
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(provider trace.TracerProvider) TracerOption {
	return func(c *TracerConfig) {
		c.Provider = provider
	}
}

// defaultTracerConfig returns the default OpenTelemetry configuration.
func defaultTracerConfig() TracerConfig {
	return TracerConfig{
		TracerName:   defaultTracerName,
		IncludeQuery: false,
		Filter:       nil,
	}
}

// Tracer is a router.Observer that traces every resolution.
//
// The observer:
//   - Opens a "wayfind.resolve" span per resolution and threads it
//     through the walk, so loaders see it as their parent span
//   - Records each settled segment as a span event
//   - Records loader errors and sets span status from the final state
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider overrides it. Configure the global in your main()
// before building the navigation:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	    sdktrace.WithResource(resource.NewWithAttributes(
//	        semconv.SchemaURL,
//	        semconv.ServiceName("my-app"),
//	    )),
//	)
//	otel.SetTracerProvider(tp)
//
//	nav, err := wayfind.New(wayfind.Config{
//	    Routes:    routes,
//	    Observers: []router.Observer{telemetry.NewTracer()},
//	})
type Tracer struct {
	config TracerConfig
	tracer trace.Tracer
}

var _ router.Observer = (*Tracer)(nil)

// NewTracer builds the observer.
func NewTracer(opts ...TracerOption) *Tracer {
	config := defaultTracerConfig()
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.Provider != nil {
		tracer = config.Provider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}

	return &Tracer{config: config, tracer: tracer}
}

// resolveSpanKey marks the span this observer opened, so the later
// callbacks never touch a span somebody else put in the context.
type resolveSpanKey struct{}

// ResolveStarted implements router.Observer. The returned context carries
// the resolution span; loaders doing their own tracing parent onto it.
func (t *Tracer) ResolveStarted(ctx context.Context, href string, method router.Method) context.Context {
	if t.config.Filter != nil && !t.config.Filter(href) {
		return ctx
	}

	spanCtx, span := t.tracer.Start(
		ctx,
		"wayfind.resolve",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("wayfind.url", t.hrefAttribute(href)),
			attribute.String("wayfind.method", string(method)),
		),
		trace.WithTimestamp(time.Now()),
	)
	return context.WithValue(spanCtx, resolveSpanKey{}, span)
}

// SegmentResolved implements router.Observer.
func (t *Tracer) SegmentResolved(ctx context.Context, pathname string, method router.Method, d time.Duration, err error) {
	span, ok := ctx.Value(resolveSpanKey{}).(trace.Span)
	if !ok {
		return
	}
	span.AddEvent("wayfind.segment", trace.WithAttributes(
		attribute.String("wayfind.pathname", pathname),
		attribute.Float64("wayfind.duration_ms", float64(d)/float64(time.Millisecond)),
	))
	if err != nil {
		span.RecordError(err)
	}
}

// ResolveFinished implements router.Observer. It closes the span opened
// by ResolveStarted.
func (t *Tracer) ResolveFinished(ctx context.Context, href string, method router.Method, d time.Duration, state router.RoutingState) {
	span, ok := ctx.Value(resolveSpanKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	span.SetAttributes(
		attribute.Int("wayfind.routes", len(state.Routes)),
		attribute.String("wayfind.status", resolveStatus(state)),
	)
	if state.Err != nil {
		span.RecordError(state.Err)
		span.SetStatus(codes.Error, state.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

func (t *Tracer) hrefAttribute(href string) string {
	if t.config.IncludeQuery {
		return href
	}
	for i := 0; i < len(href); i++ {
		if href[i] == '?' || href[i] == '#' {
			return href[:i]
		}
	}
	return href
}

// SpanFromContext retrieves the resolution span threaded by a Tracer
// observer. Returns nil when the context carries none, for example inside
// a loader running under a filtered-out resolution.
//
// Example:
//
//	GetContent: func(ctx context.Context, env router.Env) (any, error) {
//	    if span := telemetry.SpanFromContext(ctx); span != nil {
//	        span.SetAttributes(attribute.String("app.post", env.Param("slug")))
//	    }
//	    ...
//	}
func SpanFromContext(ctx context.Context) trace.Span {
	if span, ok := ctx.Value(resolveSpanKey{}).(trace.Span); ok {
		return span
	}
	return nil
}
