package obslog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahogappa/taski"
)

func TestObserver_OnTaskUpdated_LogsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	obs := New(zerolog.New(&buf))

	at := time.Unix(0, 0).UTC()
	obs.OnTaskUpdated("A", taski.StatePending, taski.StateRunning, taski.PhaseRun, at)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v (%s)", err, buf.String())
	}
	if entry["task"] != "A" {
		t.Fatalf("task = %v, want A", entry["task"])
	}
	if entry["from"] != "pending" || entry["to"] != "running" {
		t.Fatalf("from/to = %v/%v, want pending/running", entry["from"], entry["to"])
	}
	if entry["component"] != "taski" {
		t.Fatalf("component = %v, want taski", entry["component"])
	}
}

func TestObserver_OnReady_LogsMessage(t *testing.T) {
	var buf bytes.Buffer
	obs := New(zerolog.New(&buf))
	obs.OnReady()
	if !strings.Contains(buf.String(), "graph ready") {
		t.Fatalf("log output %q does not contain the ready message", buf.String())
	}
}
