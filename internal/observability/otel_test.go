package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/go-qrlink-backend/internal/config"
)

func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func enabledCfg(name string) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1,
	}
}

func TestSetupOTel_DisabledIsNoop(t *testing.T) {
	keepGlobals(t)
	prev := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false}, "v0")
	if err != nil || shutdown == nil {
		t.Fatalf("shutdown=%v err=%v", shutdown, err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
	if otel.GetTracerProvider() != prev {
		t.Fatalf("disabled tracing must not replace the provider")
	}
}

func TestSetupOTel_InstallsProviderAndPropagator(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		keepGlobals(t)
		cfg := enabledCfg("qrlink-test")
		cfg.Insecure = insecure

		shutdown, err := SetupOTel(context.Background(), cfg, "v1.0.0")
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("expected sdk tracer provider")
		}

		ctx, span := otel.Tracer("redirect").Start(context.Background(), "resolve")
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		span.End()
		if !strings.HasPrefix(carrier.Get("traceparent"), "00-") {
			t.Fatalf("traceparent not injected: %v", carrier)
		}
		sctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		_ = shutdown(sctx)
		cancel()
	}
}

func TestSetupOTel_FailuresLeaveGlobalsIntact(t *testing.T) {
	cases := map[string]func(){
		"exporter": func() {
			newExporter = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("exporter down")
			}
		},
		"resource": func() {
			newResource = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("bad resource")
			}
		},
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			keepGlobals(t)
			origExp, origRes := newExporter, newResource
			t.Cleanup(func() { newExporter, newResource = origExp, origRes })
			breakIt()

			prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
			if _, err := SetupOTel(context.Background(), enabledCfg("svc"), "v0"); err == nil {
				t.Fatalf("expected error")
			}
			if otel.GetTracerProvider() != prevTP || otel.GetTextMapPropagator() != prevProp {
				t.Fatalf("globals changed on failure")
			}
		})
	}
}

func TestSampler(t *testing.T) {
	cases := map[float64]string{
		1:    "AlwaysOnSampler",
		2:    "AlwaysOnSampler",
		0:    "AlwaysOffSampler",
		-1:   "AlwaysOffSampler",
		0.25: "TraceIDRatioBased",
	}
	for ratio, want := range cases {
		if got := sampler(ratio).Description(); !strings.Contains(got, want) {
			t.Fatalf("ratio %v: description %q does not mention %q", ratio, got, want)
		}
	}
}
