package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withTestTracer installs an in-memory span exporter as the global tracer
// provider for the duration of the test and returns it for inspection.
func withTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestStartSpan_RecordsSpan(t *testing.T) {
	exporter := withTestTracer(t)

	ctx, span := StartSpan(context.Background(), "analyze-clip")
	if CorrelationID(ctx) == "" {
		t.Error("StartSpan did not produce a trace ID")
	}
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	if spans[0].Name != "analyze-clip" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "analyze-clip")
	}
}

func TestCorrelationID_EmptyWithoutSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestCorrelationID_IsHexTraceID(t *testing.T) {
	withTestTracer(t)

	ctx, span := StartSpan(context.Background(), "dispatch-knob")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("correlation ID length = %d, want 32", len(cid))
	}
	for _, c := range cid {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Fatalf("correlation ID %q contains non-hex character %q", cid, c)
		}
	}
}

func TestCorrelationID_UniquePerTrace(t *testing.T) {
	withTestTracer(t)

	seen := make(map[string]struct{}, 50)
	for range 50 {
		ctx, span := StartSpan(context.Background(), "pad-update")
		cid := CorrelationID(ctx)
		span.End()
		if _, dup := seen[cid]; dup {
			t.Fatalf("duplicate correlation ID: %s", cid)
		}
		seen[cid] = struct{}{}
	}
}

func TestLogger_IncludesTraceContext(t *testing.T) {
	withTestTracer(t)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, span := StartSpan(context.Background(), "capture-base")
	defer span.End()

	Logger(ctx).Info("state captured")

	logged := buf.String()
	if !strings.Contains(logged, "trace_id=") {
		t.Errorf("log output missing trace_id: %s", logged)
	}
	if !strings.Contains(logged, "span_id=") {
		t.Errorf("log output missing span_id: %s", logged)
	}
}

func TestLogger_PlainWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	Logger(context.Background()).Info("no span here")

	if logged := buf.String(); strings.Contains(logged, "trace_id") {
		t.Errorf("log output should not carry trace_id: %s", logged)
	}
}
