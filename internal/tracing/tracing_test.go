package tracing

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInjectHeadersSkipsBaggage(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	member, err := baggage.NewMember("session", "secret")
	if err != nil {
		t.Fatalf("baggage member: %v", err)
	}
	bag, err := baggage.New(member)
	if err != nil {
		t.Fatalf("baggage: %v", err)
	}
	ctx = baggage.ContextWithBaggage(ctx, bag)

	h := http.Header{}
	InjectHeaders(ctx, h)
	if got := h.Get("traceparent"); got != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Fatalf("unexpected traceparent %q", got)
	}
	if got := h.Get("baggage"); got != "" {
		t.Fatalf("baggage leaked upstream: %q", got)
	}

	InjectHeaders(ctx, nil)
}

func TestResourceAttributes(t *testing.T) {
	attrs := func(kvs []attribute.KeyValue) map[string]string {
		out := map[string]string{}
		for _, kv := range kvs {
			out[string(kv.Key)] = kv.Value.Emit()
		}
		return out
	}

	got := attrs(resourceAttributes("zumo", Config{Environment: "prod", ValidationMode: "trusted", Authentication: true}))
	want := map[string]string{
		"service.name":           "zumo",
		"deployment.environment": "prod",
		"zumo.authentication":    "true",
		"zumo.validation_mode":   "trusted",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("attributes mismatch (-want +got):\n%s", diff)
	}

	got = attrs(resourceAttributes("zumo", Config{ValidationMode: "signed"}))
	if _, ok := got["zumo.validation_mode"]; ok {
		t.Fatalf("validation mode recorded with authentication off: %v", got)
	}
	if got["zumo.authentication"] != "false" {
		t.Fatalf("expected authentication=false, got %v", got)
	}
}

func TestSanitizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"":                            "",
		"collector:4317":              "collector:4317",
		"http://collector:4317":       "collector:4317",
		"https://otel.example.net/":   "otel.example.net",
		"collector:4317/":             "collector:4317",
		"  https://otel.example.net ": "otel.example.net",
	}
	for in, want := range cases {
		if got := sanitizeEndpoint(in); got != want {
			t.Errorf("sanitizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSampleRatio(t *testing.T) {
	cases := map[string]float64{
		"":     0,
		"0.25": 0.25,
		" 1 ":  1,
		"abc":  0,
	}
	for in, want := range cases {
		if got := ParseSampleRatio(in); got != want {
			t.Errorf("ParseSampleRatio(%q) = %v, want %v", in, got, want)
		}
	}
	if !parseBool("Yes") || parseBool("off") {
		t.Fatalf("unexpected parseBool result")
	}
}
