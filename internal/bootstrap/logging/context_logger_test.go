package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithJobAttrsAreEmitted(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "debug", "json"))
	ctx = WithAttrs(ctx, slog.String("component", "test"))
	ctx = WithJob(ctx, "partner_import", "job-1")

	Info(ctx, "row processed", slog.Int("row", 3), slog.String("component", "override"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["job_kind"] != "partner_import" || line["job_id"] != "job-1" {
		t.Fatalf("job attrs missing: %v", line)
	}
	if line["component"] != "override" {
		t.Fatalf("component = %v, want override", line["component"])
	}
	if line["row"] != float64(3) {
		t.Fatalf("row = %v", line["row"])
	}
}

func TestParseLevel(t *testing.T) {
	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range testCases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "info", "text"))

	Debug(ctx, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line emitted at info level: %q", buf.String())
	}
}
