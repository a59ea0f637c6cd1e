package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fridgekeep/fridgekeep/server/internal/store"
)

func TestObserverCounters(t *testing.T) {
	var st *store.Store
	m := New(func() int { return st.Count() })
	st = store.New(store.WithObserver(m))

	if _, err := st.Register("a", "u", "/a"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Register("a", "u", "/b"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Register("b", "u", "/c"); err != nil {
		t.Fatal(err)
	}
	st.Delete("b")

	if got := testutil.ToFloat64(m.registered); got != 3 {
		t.Errorf("registered_total: got %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.removed.WithLabelValues("replaced")); got != 1 {
		t.Errorf("removed_total{replaced}: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.removed.WithLabelValues("deleted")); got != 1 {
		t.Errorf("removed_total{deleted}: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.removed.WithLabelValues("evicted")); got != 0 {
		t.Errorf("removed_total{evicted}: got %v, want 0", got)
	}
}

func TestAnalysisFinished(t *testing.T) {
	m := New(func() int { return 0 })
	m.AnalysisFinished(store.Metadata{ID: "a"}, 2, nil)
	m.AnalysisFinished(store.Metadata{ID: "b"}, 0, errors.New("timeout"))
	m.AnalysisFinished(store.Metadata{ID: "c"}, 1, nil)

	if got := testutil.ToFloat64(m.analyses.WithLabelValues("analyzed")); got != 2 {
		t.Errorf("analysis_total{analyzed}: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.analyses.WithLabelValues("failed")); got != 1 {
		t.Errorf("analysis_total{failed}: got %v, want 1", got)
	}
}

func TestObserveSweep(t *testing.T) {
	m := New(func() int { return 0 })
	m.ObserveSweep(3, 2*time.Millisecond)
	m.ObserveSweep(0, time.Millisecond)

	if got := testutil.ToFloat64(m.sweepEvicted); got != 3 {
		t.Errorf("sweep_evicted_total: got %v, want 3", got)
	}
	if n := testutil.CollectAndCount(m.sweepDuration); n != 1 {
		t.Errorf("sweep_duration_seconds series: got %d, want 1", n)
	}
}

func TestHandler_ExposesLiveGauge(t *testing.T) {
	live := 7
	m := New(func() int { return live })

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "fridgekeep_resources_live 7") {
		t.Errorf("body missing live gauge:\n%s", body)
	}
	if !strings.Contains(body, `fridgekeep_resources_removed_total{reason="evicted"} 0`) {
		t.Errorf("body missing pre-created evicted series:\n%s", body)
	}
}
