package observability

import (
	"testing"
	"time"
)

func TestRequestStatsAveragesLatency(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/v1/tours", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/v1/tours", "GET", 200, 30*time.Millisecond)
	m.RecordRequest("/api/v1/tours", "GET", 404, 5*time.Millisecond)

	count, mean := m.RequestStats("/api/v1/tours", "GET", 200)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if mean != 20*time.Millisecond {
		t.Fatalf("mean latency = %v, want 20ms", mean)
	}

	count, mean = m.RequestStats("/api/v1/tours", "GET", 404)
	if count != 1 || mean != 5*time.Millisecond {
		t.Fatalf("404 stats = (%d, %v), want (1, 5ms)", count, mean)
	}
}

func TestRequestStatsUnknownKey(t *testing.T) {
	m := NewMetrics()
	count, mean := m.RequestStats("/missing", "GET", 200)
	if count != 0 || mean != 0 {
		t.Fatalf("stats = (%d, %v), want zeros", count, mean)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/x", "GET", 200, time.Millisecond)
	m.RecordError("/x", "GET", "INTERNAL")
	if count, _ := m.RequestStats("/x", "GET", 200); count != 0 {
		t.Fatalf("nil metrics reported count %d", count)
	}
}
