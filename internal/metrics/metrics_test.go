package metrics

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestIncAndGet(t *testing.T) {
	m := New()

	if got := m.Get(FrameForwarded); got != 0 {
		t.Fatalf("Get on fresh registry = %d, want 0", got)
	}
	m.Inc(FrameForwarded)
	m.Inc(FrameForwarded)
	m.Inc(DropMalformed)
	if got := m.Get(FrameForwarded); got != 2 {
		t.Errorf("frame_forwarded=%d, want 2", got)
	}
	if got := m.Get(DropMalformed); got != 1 {
		t.Errorf("drop_malformed=%d, want 1", got)
	}
}

func TestIncOnZeroValue(t *testing.T) {
	var m Metrics
	m.Inc(ConnOpened)
	if got := m.Get(ConnOpened); got != 1 {
		t.Fatalf("conn_opened=%d, want 1", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := New()
	m.Inc(ConnOpened)

	snap := m.Snapshot()
	snap[ConnOpened] = 99

	if got := m.Get(ConnOpened); got != 1 {
		t.Fatalf("mutating a snapshot changed the registry: conn_opened=%d", got)
	}
}

func TestConcurrentInc(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(FrameForwarded)
			}
		}()
	}
	wg.Wait()
	if got := m.Get(FrameForwarded); got != 8000 {
		t.Fatalf("frame_forwarded=%d, want 8000", got)
	}
}

func TestPrometheusHandler(t *testing.T) {
	m := New()
	m.Inc(ConnOpened)
	m.Inc(FrameForwarded)
	m.Inc(FrameForwarded)

	rec := httptest.NewRecorder()
	PrometheusHandler(m).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type=%q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"# HELP hearth_call_relay_events_total",
		"# TYPE hearth_call_relay_events_total counter",
		`hearth_call_relay_events_total{event="conn_opened"} 1`,
		`hearth_call_relay_events_total{event="frame_forwarded"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}

	// Output is sorted by event name so scrapes diff cleanly.
	connIdx := strings.Index(body, `event="conn_opened"`)
	frameIdx := strings.Index(body, `event="frame_forwarded"`)
	if connIdx < 0 || frameIdx < 0 || connIdx > frameIdx {
		t.Errorf("events not in sorted order:\n%s", body)
	}
}

func TestPrometheusHandlerNilMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	PrometheusHandler(nil).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 500 {
		t.Fatalf("status=%d, want 500", rec.Code)
	}
}
