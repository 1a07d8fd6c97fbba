package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithAttrsOverridesSameKey(t *testing.T) {
	ctx := WithAttrs(context.Background(), slog.String("rfq_id", "a"), slog.String("component", "x"))
	ctx = WithComponent(ctx, "usecase.release")

	attrs := Attrs(ctx)
	if len(attrs) != 2 {
		t.Fatalf("Attrs() len = %d, want 2", len(attrs))
	}
	if attrs[1].Key != "component" || attrs[1].Value.String() != "usecase.release" {
		t.Fatalf("Attrs()[1] = %v", attrs[1])
	}
}

func TestJSONLoggerCarriesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "debug", "json"))
	ctx = WithAttrs(ctx, slog.String("rfq_id", "rfq-1"))

	Debug(ctx, "export started", slog.String("kind", "step"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}
	if line["rfq_id"] != "rfq-1" || line["kind"] != "step" || line["msg"] != "export started" {
		t.Fatalf("log line = %v", line)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "warn", "text"))

	Info(ctx, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("ParseLevel(bogus) != info")
	}
}
