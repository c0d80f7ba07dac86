package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestComponentJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(&buf, "json"), "autosave")
	log.Info().Str("code", "AB12").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["component"] != "autosave" || entry["code"] != "AB12" || entry["message"] != "hello" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestPrettyIsNotJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "pretty")
	log.Info().Msg("hello")

	if json.Valid(buf.Bytes()) {
		t.Fatalf("pretty output should be console formatted, got %s", buf.String())
	}
}
