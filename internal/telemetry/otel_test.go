package telemetry

import (
	"context"
	"testing"

	"github.com/vnmchuo/ai-broker/config"
)

func TestNewExporter(t *testing.T) {
	if _, err := NewExporter(context.Background(), &config.Config{OTELExporterType: "stdout"}); err != nil {
		t.Fatalf("stdout exporter: %v", err)
	}
	if _, err := NewExporter(context.Background(), &config.Config{OTELExporterType: "zipkin"}); err == nil {
		t.Fatal("Expected error for unknown exporter type")
	}
}

func TestInitTracer_Shutdown(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "ai-broker-test", &config.Config{OTELExporterType: "stdout"})
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
