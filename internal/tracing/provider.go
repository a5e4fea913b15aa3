package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// consoleExporter writes finished spans as JSON lines, the way the rest of
// the stack logs structured events. Used when no collector endpoint is
// configured so StartSpan still produces real, inspectable spans.
type consoleExporter struct {
	w io.Writer
}

func (e consoleExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		line, err := json.Marshal(map[string]any{
			"name":    s.Name(),
			"traceId": s.SpanContext().TraceID().String(),
			"spanId":  s.SpanContext().SpanID().String(),
			"start":   s.StartTime(),
			"end":     s.EndTime(),
			"attrs":   s.Attributes(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(e.w, string(line))
	}
	return nil
}

func (e consoleExporter) Shutdown(ctx context.Context) error { return nil }

// Init builds a TracerProvider that exports finished spans to w and installs
// it via SetTracer. Returns the provider's Shutdown so callers can flush on
// exit. serviceName names the tracer instrumentation scope.
func Init(serviceName string, w io.Writer) func(ctx context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(consoleExporter{w: w}),
	)
	SetTracer(tp.Tracer(serviceName))
	return tp.Shutdown
}
