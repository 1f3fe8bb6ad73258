package serv

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

func newTracerProvider(conf *Config, log *zap.Logger) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		attribute.String("service.name", conf.AppName),
		attribute.String("service.version", version),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSyncer(&logExporter{log: log.Named("trace")}),
	)
}

// logExporter writes finished spans to the debug log
type logExporter struct {
	log *zap.Logger
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, sp := range spans {
		fields := []zap.Field{
			zap.String("trace-id", sp.SpanContext().TraceID().String()),
			zap.String("span-id", sp.SpanContext().SpanID().String()),
			zap.Duration("duration", sp.EndTime().Sub(sp.StartTime())),
			zap.String("status", sp.Status().Code.String()),
		}
		for _, kv := range sp.Attributes() {
			fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
		}
		e.log.Debug(sp.Name(), fields...)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error {
	return e.log.Sync()
}
