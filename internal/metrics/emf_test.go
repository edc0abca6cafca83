package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

// capture enables emission into a buffer for the duration of the test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	Enable(true)
	oldFn := functionName
	functionName = ""
	t.Cleanup(func() {
		SetOutput(prev)
		Enable(false)
		functionName = oldFn
	})
	return &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, buf.String())
	}
	return doc
}

func TestNew_AutoDimension(t *testing.T) {
	old := functionName
	functionName = "TestFunction"
	defer func() { functionName = old }()

	r := New("TestNamespace")
	if r.namespace != "TestNamespace" {
		t.Errorf("expected namespace TestNamespace, got %s", r.namespace)
	}
	if r.dimensions["FunctionName"] != "TestFunction" {
		t.Errorf("expected FunctionName dimension TestFunction, got %s", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	buf := capture(t)

	New(Namespace).
		Dimension("Tag", "keep").
		Metric("LatencyMs", 12.5, UnitMilliseconds).
		Count("Decisions").
		Property("sessionId", "abc-123").
		Flush()

	doc := decode(t, buf)
	aws, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	if _, ok := aws["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}
	cw := aws["CloudWatchMetrics"].([]any)[0].(map[string]any)
	if cw["Namespace"] != Namespace {
		t.Errorf("Namespace = %v, want %s", cw["Namespace"], Namespace)
	}
	defs := cw["Metrics"].([]any)
	if len(defs) != 2 || defs[0].(map[string]any)["Name"] != "Decisions" {
		t.Errorf("metric defs = %v, want sorted [Decisions LatencyMs]", defs)
	}
	if doc["Tag"] != "keep" || doc["LatencyMs"] != 12.5 || doc["Decisions"] != float64(1) {
		t.Errorf("unexpected values: %v", doc)
	}
	if doc["sessionId"] != "abc-123" {
		t.Errorf("sessionId = %v", doc["sessionId"])
	}
}

func TestRecorder_FlushEmptyOrDisabled(t *testing.T) {
	buf := capture(t)

	New("Test").Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}

	Enable(false)
	New("Test").Count("Calls").Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output while disabled, got: %s", buf.String())
	}
}

func TestRecorder_Chaining(t *testing.T) {
	rec := New("Test").
		Dimension("Op", "test").
		Metric("Duration", 100, UnitMilliseconds).
		Count("Calls").
		Property("id", "xyz")

	if rec.dimensions["Op"] != "test" {
		t.Error("chaining Dimension failed")
	}
	if rec.values["Duration"] != float64(100) {
		t.Error("chaining Metric failed")
	}
	if m := rec.metrics["Calls"]; m.Unit != UnitCount || rec.values["Calls"] != float64(1) {
		t.Error("chaining Count failed")
	}
	if rec.properties["id"] != "xyz" {
		t.Error("chaining Property failed")
	}
}

func TestVideoCall(t *testing.T) {
	buf := capture(t)

	VideoCall("kling", "poll", "retryable", 1500*time.Millisecond)

	doc := decode(t, buf)
	if doc["Service"] != "kling" || doc["Operation"] != "poll" || doc["Result"] != "retryable" {
		t.Errorf("dimensions = %v", doc)
	}
	if doc["VideoCallLatencyMs"] != float64(1500) {
		t.Errorf("VideoCallLatencyMs = %v", doc["VideoCallLatencyMs"])
	}
}
