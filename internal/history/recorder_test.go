package history

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/cpsclick/internal/model"
)

func sampleSummary(clicks int) model.SessionSummary {
	return model.SessionSummary{
		ID:          "s-" + strings.Repeat("x", clicks%5),
		Timestamp:   time.Date(2024, 5, 1, 10, 0, clicks, 0, time.UTC),
		Mode:        model.TimeTrial,
		TimeLimit:   10,
		TotalClicks: clicks,
		TotalTime:   10,
		FinalRate:   float64(clicks) / 10,
		MaxRate:     4,
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	r := NewRecorder(filepath.Join(t.TempDir(), "none.json"))
	r.Load()
	if r.Len() != 0 {
		t.Fatalf("expected empty history")
	}
}

func TestLoadCorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session_data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewRecorder(path)
	r.Load()
	if r.Len() != 0 {
		t.Fatalf("expected corrupt history to load as empty")
	}
}

func TestRecordOverwritesFullHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session_data.json")
	r := NewRecorder(path)
	r.Record(sampleSummary(20), nil)
	r.Record(sampleSummary(31), nil)

	reloaded := NewRecorder(path)
	reloaded.Load()
	got := reloaded.Sessions()
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions on disk, got %d", len(got))
	}
	if got[0].TotalClicks != 20 || got[1].TotalClicks != 31 {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got[0].Timestamp.Equal(sampleSummary(20).Timestamp) {
		t.Fatalf("timestamp did not round-trip: %v", got[0].Timestamp)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, got %d entries", len(entries))
	}
}

func TestRecordSurvivesWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewRecorder(filepath.Join(blocker, "session_data.json"))
	r.Record(sampleSummary(3), nil)
	if r.Len() != 1 {
		t.Fatalf("expected in-memory history to keep the session")
	}
}

type fakeArchive struct {
	ids     []string
	samples int
	err     error
}

func (a *fakeArchive) InsertSession(_ context.Context, summary model.SessionSummary, samples []model.RateSample) error {
	a.ids = append(a.ids, summary.ID)
	a.samples += len(samples)
	return a.err
}

func TestRecordMirrorsToArchive(t *testing.T) {
	archive := &fakeArchive{err: errors.New("db locked")}
	r := NewRecorder(filepath.Join(t.TempDir(), "h.json"), WithArchive(archive))
	r.Record(sampleSummary(7), []model.RateSample{{Elapsed: time.Second, Rate: 1}, {Elapsed: 2 * time.Second, Rate: 2}})
	if len(archive.ids) != 1 || archive.samples != 2 {
		t.Fatalf("expected archive to receive session and samples, got %+v", archive)
	}
	if r.Len() != 1 {
		t.Fatalf("expected archive failure not to affect history")
	}
}

func TestExportEmptyWritesNothing(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(filepath.Join(dir, "h.json"))
	path, err := r.Export(dir, time.Now())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if path != "" {
		t.Fatalf("expected no path, got %q", path)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files written, got %d", len(entries))
	}
}

func TestExportWritesCSV(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(filepath.Join(t.TempDir(), "h.json"))
	r.Record(sampleSummary(20), nil)
	r.Record(sampleSummary(12), nil)

	now := time.Date(2024, 6, 2, 15, 4, 5, 0, time.Local)
	path, err := r.Export(dir, now)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Base(path) != "cps_data_20240602_150405.csv" {
		t.Fatalf("unexpected file name %q", filepath.Base(path))
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = file.Close() }()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "timestamp,mode,time_limit,total_clicks,total_time,final_rate,max_rate" {
		t.Fatalf("unexpected header %v", records[0])
	}
	row := records[1]
	if row[1] != "Time Trial" || row[2] != "10" || row[3] != "20" || row[4] != "10" || row[5] != "2" || row[6] != "4" {
		t.Fatalf("unexpected row %v", row)
	}

	second, err := r.Export(dir, now)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if second == path || filepath.Base(second) != "cps_data_20240602_150405_1.csv" {
		t.Fatalf("expected unique second file name, got %q", second)
	}
}
