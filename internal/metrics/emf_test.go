package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func captureFlush(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	defer SetOutput(prev)
	fn()
	return buf.String()
}

func TestNew_AutoDimension(t *testing.T) {
	initOnce.Do(func() {})
	functionName = "caption-api"
	defer func() { functionName = "" }()

	r := New(Namespace)
	if r.namespace != Namespace {
		t.Errorf("namespace = %s, want %s", r.namespace, Namespace)
	}
	if r.dimensions["FunctionName"] != "caption-api" {
		t.Errorf("FunctionName dimension = %q, want caption-api", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	initOnce.Do(func() {})
	functionName = ""

	output := captureFlush(t, func() {
		New(Namespace).
			Dimension("Operation", "generate").
			Duration("LatencyMs", 1500*time.Millisecond).
			Count("CallCount").
			Property("sessionId", "abc-123").
			Flush()
	})

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		t.Fatalf("failed to parse EMF output: %v\nOutput: %s", err, output)
	}

	aws, ok := doc["_aws"].(map[string]interface{})
	if !ok {
		t.Fatal("missing _aws directive")
	}
	if _, ok := aws["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}
	cw := aws["CloudWatchMetrics"].([]interface{})
	if len(cw) != 1 {
		t.Fatalf("CloudWatchMetrics entries = %d, want 1", len(cw))
	}
	entry := cw[0].(map[string]interface{})
	if entry["Namespace"] != Namespace {
		t.Errorf("Namespace = %v, want %s", entry["Namespace"], Namespace)
	}
	if got := len(entry["Metrics"].([]interface{})); got != 2 {
		t.Errorf("metric definitions = %d, want 2", got)
	}

	if doc["Operation"] != "generate" {
		t.Errorf("Operation = %v, want generate", doc["Operation"])
	}
	if doc["LatencyMs"] != 1500.0 {
		t.Errorf("LatencyMs = %v, want 1500", doc["LatencyMs"])
	}
	if doc["CallCount"] != 1.0 {
		t.Errorf("CallCount = %v, want 1", doc["CallCount"])
	}
	if doc["sessionId"] != "abc-123" {
		t.Errorf("sessionId = %v, want abc-123", doc["sessionId"])
	}
}

func TestRecorder_FlushWithoutMetrics(t *testing.T) {
	output := captureFlush(t, func() {
		New(Namespace).Dimension("Operation", "noop").Property("k", "v").Flush()
	})
	if output != "" {
		t.Errorf("expected no output without metrics, got %q", output)
	}
}
