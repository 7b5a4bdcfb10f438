package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestAutoFormatUsesJSONForNonTerminals(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, FormatAuto, "info")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("generation complete", "generation", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected json record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "generation complete" || record["generation"] != float64(3) {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestTextFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, FormatText, "warn")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "best", 2.5)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") || !strings.Contains(out, "best=2.5") {
		t.Fatalf("unexpected text output: %q", out)
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "xml", "info"); err == nil {
		t.Fatal("expected format error")
	}
	if _, err := New(&bytes.Buffer{}, FormatText, "loud"); err == nil {
		t.Fatal("expected level error")
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("expected discard logger")
	}
}
