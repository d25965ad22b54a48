package tracker

import (
	"math"
	"testing"
	"time"
)

func at(base time.Time, seconds float64) time.Time {
	return base.Add(time.Duration(seconds * float64(time.Second)))
}

func TestRateCountsTrailingSecond(t *testing.T) {
	base := time.Unix(1000, 0)
	tr := New()
	for _, s := range []float64{0, 0.5, 0.9, 1.2} {
		tr.Record(at(base, s))
	}
	if got := tr.Rate(at(base, 1.2)); got != 3 {
		t.Fatalf("expected rate 3, got %d", got)
	}
	if tr.Total() != 4 {
		t.Fatalf("expected 4 total clicks, got %d", tr.Total())
	}
}

func TestRateIncludesWindowBoundary(t *testing.T) {
	base := time.Unix(1000, 0)
	tr := New()
	tr.Record(base)
	if got := tr.Rate(at(base, 1.0)); got != 1 {
		t.Fatalf("expected click exactly one second old to count, got %d", got)
	}
	if got := tr.Rate(at(base, 1.001)); got != 0 {
		t.Fatalf("expected expired click to be dropped, got %d", got)
	}
}

func TestRateBeforeAnyClick(t *testing.T) {
	tr := New()
	if got := tr.Rate(time.Now()); got != 0 {
		t.Fatalf("expected zero rate, got %d", got)
	}
	if tr.MaxRate() != 0 {
		t.Fatalf("expected zero max rate")
	}
}

func TestRateMatchesBruteForce(t *testing.T) {
	base := time.Unix(0, 0)
	offsets := []float64{0, 0.05, 0.1, 0.3, 0.31, 0.95, 1.0, 1.05, 1.4, 2.2, 2.21, 2.3, 3.5}
	tr := New()
	for _, s := range offsets {
		tr.Record(at(base, s))
	}
	for _, q := range []float64{0.2, 1.0, 1.1, 1.5, 2.25, 3.0, 3.6, 5.0} {
		now := at(base, q)
		want := 0
		for _, s := range offsets {
			ts := at(base, s)
			if !ts.After(now) && now.Sub(ts) <= time.Second {
				want++
			}
		}
		if got := tr.Rate(now); got != want {
			t.Fatalf("Rate(%.2f) = %d, want %d", q, got, want)
		}
	}
}

func TestMaxRateNeverDecreases(t *testing.T) {
	base := time.Unix(0, 0)
	tr := New()
	prev := 0
	for i := 0; i < 40; i++ {
		now := at(base, float64(i)*0.07)
		if i > 20 {
			now = at(base, 1.4+float64(i)*0.4)
		}
		tr.Record(now)
		tr.Rate(now)
		if tr.MaxRate() < prev {
			t.Fatalf("max rate decreased from %d to %d", prev, tr.MaxRate())
		}
		prev = tr.MaxRate()
	}
	tr.Reset()
	if tr.MaxRate() != 0 || tr.Total() != 0 {
		t.Fatalf("expected reset to clear tracker")
	}
}

func TestAverage(t *testing.T) {
	base := time.Unix(0, 0)
	tr := New()
	if tr.Average(at(base, 5), base) != 0 {
		t.Fatalf("expected zero average without clicks")
	}
	for i := 0; i < 20; i++ {
		tr.Record(at(base, float64(i)*0.5))
	}
	if got := tr.Average(at(base, 10), base); math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("expected average 2.0, got %f", got)
	}
	if tr.Average(base, base) != 0 {
		t.Fatalf("expected zero average for zero elapsed time")
	}
}

func TestCapacityKeepsTotals(t *testing.T) {
	base := time.Unix(0, 0)
	tr := New(WithCapacity(3))
	for i := 0; i < 5; i++ {
		tr.Record(at(base, float64(i)*0.1))
	}
	if tr.Total() != 5 {
		t.Fatalf("expected total 5, got %d", tr.Total())
	}
	if got := tr.Rate(at(base, 0.4)); got != 3 {
		t.Fatalf("expected only retained clicks to count, got %d", got)
	}
}

func TestRecordClampsOutOfOrderTimestamps(t *testing.T) {
	base := time.Unix(0, 0)
	tr := New(WithWindow(500 * time.Millisecond))
	tr.Record(at(base, 1))
	tr.Record(at(base, 0.2))
	if got := tr.Rate(at(base, 1.4)); got != 2 {
		t.Fatalf("expected clamped click inside window, got %d", got)
	}
	if tr.Window() != 500*time.Millisecond {
		t.Fatalf("unexpected window %v", tr.Window())
	}
}
