package observe

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitProvider_ExportsToRegisterer(t *testing.T) {
	origMP, origTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	reg := prometheus.NewRegistry()
	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		Registerer: reg,
		Attributes: []attribute.KeyValue{attribute.String("radioclean.run_id", "run-7")},
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordStage(context.Background(), StageFilter, 20*time.Millisecond)
	m.RecordFile(context.Background(), StatusOK)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var stage, files bool
	for _, f := range families {
		name := f.GetName()
		stage = stage || strings.HasPrefix(name, "radioclean_stage_duration")
		files = files || strings.HasPrefix(name, "radioclean_files")
	}
	if !stage || !files {
		names := make([]string, 0, len(families))
		for _, f := range families {
			names = append(names, f.GetName())
		}
		t.Errorf("exported families missing stage=%v files=%v: %v", stage, files, names)
	}
}

func TestBuildVersion_NotEmpty(t *testing.T) {
	if v := buildVersion(); v == "" {
		t.Error("buildVersion returned empty string")
	}
}
