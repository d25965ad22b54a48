package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/cpsclick/internal/model"
)

func TestMetrics(t *testing.T) {
	sessions := []model.SessionAggregate{
		{FinalRate: 4, MaxRate: 6, TotalClicks: 40, TotalTimeMs: 10000},
		{FinalRate: 6, MaxRate: 9, TotalClicks: 60, TotalTimeMs: 10000},
	}
	m := Metrics(sessions)
	if m.Count != 2 || m.AvgFinalRate != 5 || m.BestMaxRate != 9 || m.TotalClicks != 100 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if m.TotalTime != 20*time.Second {
		t.Fatalf("unexpected total time %v", m.TotalTime)
	}
	if got := Metrics(nil); got != (SessionMetrics{}) {
		t.Fatalf("expected zero metrics, got %+v", got)
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 9}); got != " @" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{3, 3, 3}); got != "+++" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
}

func TestRateTraceIsStepFunction(t *testing.T) {
	samples := []model.RateSample{
		{Elapsed: 2 * time.Second, Rate: 4},
		{Elapsed: 5 * time.Second, Rate: 8},
	}
	// 11 columns over a 10s axis: one column per second.
	got := RateTrace(samples, 11)
	want := []float64{0, 0, 4, 4, 4, 8, 8, 8, 8, 8, 8}
	if len(got) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d: expected %v, got %v (%v)", i, want[i], got[i], got)
		}
	}
}

func TestChartBounds(t *testing.T) {
	if got := ChartSeconds(nil); got != 10 {
		t.Fatalf("expected 10s minimum, got %v", got)
	}
	long := []model.RateSample{{Elapsed: 14500 * time.Millisecond, Rate: 30}}
	if got := ChartSeconds(long); got != 15.5 {
		t.Fatalf("expected 15.5s, got %v", got)
	}
	if got := ChartRateMax(nil); got != 25 {
		t.Fatalf("expected 25 minimum, got %v", got)
	}
	if got := ChartRateMax(long); got != 35 {
		t.Fatalf("expected 35, got %v", got)
	}
}

func TestRenderRateChart(t *testing.T) {
	var buf bytes.Buffer
	samples := []model.RateSample{
		{Elapsed: time.Second, Rate: 3},
		{Elapsed: 2 * time.Second, Rate: 6},
	}
	if err := RenderRateChart(&buf, samples, 40, 4, false); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "  25") || !strings.Contains(out, "0s") || !strings.Contains(out, "10s") {
		t.Fatalf("unexpected chart:\n%s", out)
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "No sessions found.") {
		t.Fatalf("unexpected empty summary %q", buf.String())
	}
	buf.Reset()
	if err := RenderSummary(&buf, []model.SessionAggregate{{FinalRate: 5.5, MaxRate: 8, TotalClicks: 55}}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "Avg Final CPS: 5.50") || !strings.Contains(buf.String(), "Best Max CPS: 8") {
		t.Fatalf("unexpected summary %q", buf.String())
	}
}

func TestRenderHistoryTable(t *testing.T) {
	var buf bytes.Buffer
	sessions := []model.SessionSummary{{
		Timestamp:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local),
		Mode:        model.Endless,
		TimeLimit:   10,
		TotalClicks: 42,
		TotalTime:   6.5,
		FinalRate:   6.46,
		MaxRate:     9,
	}}
	if err := RenderHistoryTable(&buf, sessions); err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", lines)
	}
	if !strings.Contains(lines[1], "2024-03-01 12:00:00") || !strings.Contains(lines[1], "Endless Mode") || !strings.Contains(lines[1], "6.46") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}
