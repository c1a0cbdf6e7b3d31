package ccx

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := SlogLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.LogOverride(OverrideLogEvent{Op: OpGet, CohortID: "C1", Location: "loc1", Field: "due", Hit: true})
	logger.LogOverride(OverrideLogEvent{Op: OpSet, CohortID: "C1", Location: "loc1", Field: "due"})
	logger.LogOverride(OverrideLogEvent{Op: OpLoad, CohortID: "C1", Location: "loc1", Err: errors.New("store down")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 records, got %d: %s", len(lines), buf.String())
	}
	wantLevels := []string{"DEBUG", "INFO", "ERROR"}
	for i, line := range lines {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode record %d: %v", i, err)
		}
		if record["level"] != wantLevels[i] {
			t.Fatalf("record %d: expected level %s, got %v", i, wantLevels[i], record["level"])
		}
		if record["cohort_id"] != "C1" || record["location"] != "loc1" {
			t.Fatalf("record %d: missing override attrs %v", i, record)
		}
	}

	var first map[string]any
	_ = json.Unmarshal([]byte(lines[0]), &first)
	if first["cache_hit"] != true || first["field"] != "due" {
		t.Fatalf("expected cache_hit and field on get, got %v", first)
	}
	var last map[string]any
	_ = json.Unmarshal([]byte(lines[2]), &last)
	if last["error"] != "store down" {
		t.Fatalf("expected error attr, got %v", last)
	}
}

func TestNilOverrideLoggerFunc(t *testing.T) {
	var logger OverrideLoggerFunc
	logger.LogOverride(OverrideLogEvent{Op: OpGet})
}
