package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/dewiweb/holophonix-animator-sub000/internal/logging"
)

func TestObserveTickRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.ObserveTick(2*time.Millisecond, 8, 2)
	collector.ObserveTick(time.Millisecond, 9, 2)

	if got := testutil.ToFloat64(collector.Ticks); got != 2 {
		t.Fatalf("animator_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Tracks); got != 9 {
		t.Fatalf("animator_tracks = %v, want 9", got)
	}
	if count := histogramSampleCount(t, reg, "animator_tick_duration_seconds", nil); count != 2 {
		t.Fatalf("animator_tick_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestGroupWritesAndRejections(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	collector.AddGroupWrites("ring", 3)
	collector.AddGroupWrites("ring", 2)
	collector.AddGroupWrites("empty", 0)
	collector.IncRejected()

	if got := testutil.ToFloat64(collector.PositionsWritten.WithLabelValues("ring")); got != 5 {
		t.Fatalf("ring writes = %v, want 5", got)
	}
	if got := testutil.CollectAndCount(collector.PositionsWritten); got != 1 {
		t.Fatalf("series count = %d, want 1 (zero writes must not create a series)", got)
	}
	if got := testutil.ToFloat64(collector.PositionsRejected); got != 1 {
		t.Fatalf("rejected = %v, want 1", got)
	}

	collector.ForgetGroup("ring")
	if got := testutil.CollectAndCount(collector.PositionsWritten); got != 0 {
		t.Fatalf("series count after ForgetGroup = %d, want 0", got)
	}
}

func TestNewEngineCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("first NewEngineCollector: %v", err)
	}
	second, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("second NewEngineCollector: %v", err)
	}
	second.Ticks.Inc()
	if got := testutil.ToFloat64(first.Ticks); got != 1 {
		t.Fatalf("collectors not shared: first ticks = %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *EngineCollector
	c.ObserveTick(time.Millisecond, 1, 1)
	c.AddGroupWrites("g", 1)
	c.IncRejected()
	c.ForgetGroup("g")
}

func TestMetricsHandlerExposesEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	collector.ObserveTick(time.Millisecond, 4, 1)
	collector.AddGroupWrites("ring", 4)
	collector.IncRejected()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"animator_ticks_total",
		"animator_tick_duration_seconds",
		"animator_tracks 4",
		"animator_groups 1",
		`animator_group_positions_written_total{group="ring"} 4`,
		"animator_positions_rejected_total 1",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	tracing, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := tracing.Tracer().Start(context.Background(), "tick")
	if span.SpanContext().IsValid() {
		t.Fatalf("expected non-recording span when tracing is disabled")
	}
	span.End()
	tracing.Shutdown(context.Background())
}

func TestInitTracingStdoutExportsEngineSpans(t *testing.T) {
	var buf bytes.Buffer
	tracing, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "animator-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		RunID:       "run-42",
		Parallelism: 3,
		Writer:      &buf,
	}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	_, span := tracing.Tracer().Start(context.Background(), "engine.advance")
	span.End()
	tracing.Shutdown(context.Background())

	out := buf.String()
	for _, want := range []string{"engine.advance", EngineScope, "run-42", "animator.parallelism"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in exported span, got %q", want, out)
		}
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestShutdownNilTracingIsSafe(t *testing.T) {
	var tracing *Tracing
	tracing.Shutdown(context.Background())
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
