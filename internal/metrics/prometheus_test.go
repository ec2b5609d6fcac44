// ABOUTME: Tests for listener metrics
// ABOUTME: Gathers the private registry and scrapes the HTTP handler
package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/liveplanting/liveplanting-go/pkg/liveplanting"
)

var _ liveplanting.Recorder = (*Metrics)(nil)

// value finds a gathered sample by name and label pairs
func value(t *testing.T, m *Metrics, name string, labels ...string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if !hasLabels(metric, labels) {
				continue
			}
			switch {
			case metric.Counter != nil:
				return metric.GetCounter().GetValue()
			case metric.Gauge != nil:
				return metric.GetGauge().GetValue()
			case metric.Histogram != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}

	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels []string) bool {
	want := make(map[string]string)
	for i := 0; i+1 < len(labels); i += 2 {
		want[labels[i]] = labels[i+1]
	}
	for _, lp := range metric.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestPipelineCounters(t *testing.T) {
	m := New()

	m.BlockReceived()
	m.BlockReceived()
	m.BlockReceived()
	m.BlockScheduled(150 * time.Millisecond)
	m.BlockScheduled(190 * time.Millisecond)
	m.BlockRejected("length")
	m.Underrun()

	if got := value(t, m, "liveplanting_blocks_received_total"); got != 3 {
		t.Errorf("expected 3 received, got %v", got)
	}
	if got := value(t, m, "liveplanting_blocks_scheduled_total"); got != 2 {
		t.Errorf("expected 2 scheduled, got %v", got)
	}
	if got := value(t, m, "liveplanting_blocks_rejected_total", "reason", "length"); got != 1 {
		t.Errorf("expected 1 rejected, got %v", got)
	}
	if got := value(t, m, "liveplanting_underruns_total"); got != 1 {
		t.Errorf("expected 1 underrun, got %v", got)
	}
	if got := value(t, m, "liveplanting_buffer_depth_seconds"); got < 0.189 || got > 0.191 {
		t.Errorf("expected buffer depth 0.19, got %v", got)
	}
	if got := value(t, m, "liveplanting_schedule_ahead_seconds"); got != 2 {
		t.Errorf("expected 2 histogram samples, got %v", got)
	}
}

func TestCommandResults(t *testing.T) {
	m := New()

	m.CommandSent("start_rec", nil)
	m.CommandSent("start_rec", nil)
	m.CommandSent("start_rec", errors.New("not connected"))

	if got := value(t, m, "liveplanting_commands_total", "command", "start_rec", "result", "ok"); got != 2 {
		t.Errorf("expected 2 ok, got %v", got)
	}
	if got := value(t, m, "liveplanting_commands_total", "command", "start_rec", "result", "error"); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}

func TestConnectionState(t *testing.T) {
	m := New()

	m.ConnectionChanged("connected")
	m.BlockScheduled(200 * time.Millisecond)

	if got := value(t, m, "liveplanting_connection_state", "state", "connected"); got != 1 {
		t.Errorf("expected connected=1, got %v", got)
	}

	m.ConnectionChanged("error")

	if got := value(t, m, "liveplanting_connection_state", "state", "connected"); got != 0 {
		t.Errorf("expected connected=0 after error, got %v", got)
	}
	if got := value(t, m, "liveplanting_connection_state", "state", "error"); got != 1 {
		t.Errorf("expected error=1, got %v", got)
	}
	if got := value(t, m, "liveplanting_buffer_depth_seconds"); got != 0 {
		t.Errorf("expected buffer depth reset, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.BlockReceived()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if !strings.Contains(string(body), "liveplanting_blocks_received_total 1") {
		t.Errorf("scrape missing received counter:\n%s", body)
	}
	if strings.Contains(string(body), "go_goroutines") {
		t.Error("private registry should not include default collectors")
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := New()
	b := New()

	a.Underrun()

	if got := value(t, b, "liveplanting_underruns_total"); got != 0 {
		t.Errorf("expected independent registries, got %v", got)
	}
}
