package telemetry

import (
	"context"
	"testing"
)

func TestInitTracerWithoutCollector(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "test-service", "")
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	_, span := GetTracer("test").Start(context.Background(), "noop")
	span.SetAttributes(String("k", "v"), Int("n", 1))
	span.End()
}
