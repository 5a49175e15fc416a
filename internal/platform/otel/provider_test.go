package otel

import (
	"context"
	"testing"
)

func TestSetupNoopWithoutEndpoint(t *testing.T) {
	t.Setenv("WYRMTABLE_OTEL_ENDPOINT", "")
	shutdown, err := Setup(context.Background(), "wyrmtable-test")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a shutdown function")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupNoopWhenDisabled(t *testing.T) {
	t.Setenv("WYRMTABLE_OTEL_ENABLED", "false")
	t.Setenv("WYRMTABLE_OTEL_ENDPOINT", "http://localhost:4318")
	shutdown, err := Setup(context.Background(), "wyrmtable-test")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
