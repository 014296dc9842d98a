package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), &config.Config{}, "api", nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestStartAndEndRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := Start(context.Background(), "payments.confirm", attribute.String("intent_id", "pi_1"))
	End(span, errors.New("gateway down"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "payments.confirm" {
		t.Fatalf("unexpected span name %s", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected error status")
	}
}

func TestSampleRatio(t *testing.T) {
	for in, want := range map[float64]float64{0: 1, -1: 1, 2: 1, 0.25: 0.25} {
		if got := sampleRatio(in); got != want {
			t.Fatalf("sampleRatio(%v)=%v want %v", in, got, want)
		}
	}
}
