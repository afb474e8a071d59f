package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsHighCardinalityLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("method", "card"),
		attribute.String("customer_id", "456"),
		attribute.String("request_id", "789"),
		attribute.String("outcome", "completed"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "customer_id" || attr.Key == "request_id" {
			t.Fatalf("expected %s to be dropped", attr.Key)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordPayment(context.Background(), "card", "completed")
	m.RecordTransition(context.Background(), "requested", "cancelled")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "mutrapro"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordRequestSubmitted(context.Background(), "transcription")
	m.RecordFeedback(context.Background(), "revision")
	m.RecordTransaction(context.Background(), "payment")
}
