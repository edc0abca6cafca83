package metrics

import "time"

// Decision counts one keep/delete decision.
func Decision(tag string) {
	New(Namespace).
		Dimension("Tag", tag).
		Count("Decisions").
		Flush()
}

// Undo counts one undo, noting whether anything was actually reverted.
func Undo(reverted bool) {
	New(Namespace).
		Count("Undos").
		Property("reverted", reverted).
		Flush()
}

// TriageComplete records the final partition sizes of a finished session.
func TriageComplete(kept, deleted int) {
	New(Namespace).
		Metric("KeptPhotos", float64(kept), UnitCount).
		Metric("DeletedPhotos", float64(deleted), UnitCount).
		Count("TriageCompleted").
		Flush()
}

// VideoCall records a submit or poll against a generation vendor.
// result is "ok", "retryable", or "terminal".
func VideoCall(service, op, result string, elapsed time.Duration) {
	New(Namespace).
		Dimension("Service", service).
		Dimension("Operation", op).
		Dimension("Result", result).
		Metric("VideoCallLatencyMs", float64(elapsed.Milliseconds()), UnitMilliseconds).
		Count("VideoCalls").
		Flush()
}

// Request records one HTTP request against a normalized endpoint.
func Request(endpoint, method string, status int, elapsed time.Duration) {
	New(Namespace).
		Dimension("Endpoint", endpoint).
		Metric("RequestLatencyMs", float64(elapsed.Milliseconds()), UnitMilliseconds).
		Count("RequestCount").
		Property("method", method).
		Property("statusCode", status).
		Flush()
}
