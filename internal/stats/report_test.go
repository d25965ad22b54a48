package stats

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/cpsclick/internal/model"
	"github.com/verte-zerg/cpsclick/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "cpsclick.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		summary := model.SessionSummary{
			ID:          fmt.Sprintf("s%d", i),
			Timestamp:   time.Unix(0, 0).Add(time.Duration(i) * time.Minute),
			Mode:        model.TimeTrial,
			TimeLimit:   10,
			TotalClicks: 50 + i,
			TotalTime:   10,
			FinalRate:   5 + float64(i)/10,
			MaxRate:     float64(7 + i),
		}
		samples := []model.RateSample{
			{Elapsed: 200 * time.Millisecond, Rate: 1},
			{Elapsed: 400 * time.Millisecond, Rate: 2 + i},
		}
		if err := st.InsertSession(ctx, summary, samples); err != nil {
			t.Fatalf("insert session: %v", err)
		}
	}

	report, err := BuildReport(ctx, st, model.HistoryFilter{Last: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(report.Sessions))
	}
	if report.Sessions[0].SessionID != "s1" || report.Sessions[1].SessionID != "s2" {
		t.Fatalf("unexpected session ids: %+v", report.Sessions)
	}
	if report.Latest == nil || report.Latest.SessionID != "s2" {
		t.Fatalf("unexpected latest session: %+v", report.Latest)
	}
	if len(report.LatestSamples) != 2 || report.LatestSamples[1].Rate != 4 {
		t.Fatalf("unexpected latest samples: %+v", report.LatestSamples)
	}
	if report.Metrics.Count != 2 || report.Metrics.BestMaxRate != 9 || report.Metrics.TotalClicks != 103 {
		t.Fatalf("unexpected metrics: %+v", report.Metrics)
	}
}

func TestBuildReportEmpty(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "cpsclick.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	report, err := BuildReport(context.Background(), st, model.HistoryFilter{})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 0 || report.Latest != nil {
		t.Fatalf("expected empty report, got %+v", report)
	}
}
