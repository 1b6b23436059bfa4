package logging

import (
	"context"
	"testing"
)

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelationID(ctx); got != "" {
		t.Fatalf("expected empty correlation ID on fresh context, got %q", got)
	}

	ctx = WithCorrelationID(ctx, "abc-123")
	if got := GetCorrelationID(ctx); got != "abc-123" {
		t.Fatalf("expected abc-123, got %q", got)
	}
}

func TestGenerateCorrelationIDUnique(t *testing.T) {
	a := GenerateCorrelationID()
	b := GenerateCorrelationID()
	if a == "" || b == "" {
		t.Fatal("generated empty correlation ID")
	}
	if a == b {
		t.Fatal("correlation IDs should be unique")
	}
}
