package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecordsRuntimeMetrics(t *testing.T) {
	c := NewCollectorWith("test", prometheus.NewRegistry())

	c.IncBoundaryCalls("addMarker", true)
	c.IncBoundaryCalls("addMarker", true)
	c.IncBoundaryCalls("getZoom", false)
	c.ObserveBoundaryDuration("addMarker", 5*time.Millisecond)
	c.AddHandles(3)
	c.AddHandles(-1)
	c.SetActiveMaps(2)
	c.IncBackgroundErrors("panTo")
	c.IncEvents("zoomend")
	c.SetPresetsLoaded(4)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"successful addMarker", testutil.ToFloat64(c.boundaryCalls.WithLabelValues("addMarker", "success")), 2},
		{"failed getZoom", testutil.ToFloat64(c.boundaryCalls.WithLabelValues("getZoom", "error")), 1},
		{"handles", testutil.ToFloat64(c.handles), 2},
		{"active maps", testutil.ToFloat64(c.activeMaps), 2},
		{"background errors", testutil.ToFloat64(c.backgroundErrors.WithLabelValues("panTo")), 1},
		{"events", testutil.ToFloat64(c.events.WithLabelValues("zoomend")), 1},
		{"presets", testutil.ToFloat64(c.presetsLoaded), 4},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	c := NewCollectorWith("test", prometheus.NewRegistry())

	r := mux.NewRouter()
	r.Use(c.Middleware)
	r.HandleFunc("/api/v1/maps/{mapId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/maps/"+id, nil))
	}

	got := testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/maps/{mapId}", "4xx"))
	if got != 3 {
		t.Errorf("requests for route template = %v, want 3", got)
	}
}

func TestStatusResponseWriterFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &statusResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	var _ http.Flusher = w
	w.Flush()
	if !rec.Flushed {
		t.Error("Flush should reach the underlying writer")
	}
}

func TestStatusToString(t *testing.T) {
	tests := map[int]string{200: "2xx", 304: "3xx", 409: "4xx", 502: "5xx", 0: "unknown"}
	for code, want := range tests {
		if got := statusToString(code); got != want {
			t.Errorf("statusToString(%d) = %s, want %s", code, got, want)
		}
	}
}
