package game

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/cpsclick/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type manualTimer struct {
	fn      func()
	d       time.Duration
	stopped bool
}

func (t *manualTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

type manualScheduler struct {
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{fn: f, d: d}
	s.timers = append(s.timers, t)
	return t
}

// fireAll runs every scheduled callback, including stopped ones, the way a
// timer that already fired before Stop would.
func (s *manualScheduler) fireAll() {
	for _, t := range s.timers {
		t.fn()
	}
}

type memRecorder struct {
	summaries []model.SessionSummary
	samples   [][]model.RateSample
}

func (r *memRecorder) Record(summary model.SessionSummary, samples []model.RateSample) {
	r.summaries = append(r.summaries, summary)
	r.samples = append(r.samples, samples)
}

func newTestSession(t *testing.T, cfg model.GameConfig, opts ...Option) (*Session, *fakeClock, *manualScheduler, *memRecorder) {
	t.Helper()
	clock := newFakeClock()
	sched := &manualScheduler{}
	rec := &memRecorder{}
	opts = append([]Option{WithClock(clock), WithScheduler(sched), WithConfig(cfg)}, opts...)
	return New(rec, opts...), clock, sched, rec
}

func TestClickBeforeStartIsRejected(t *testing.T) {
	s, _, _, _ := newTestSession(t, model.DefaultGameConfig())
	if _, err := s.Click(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if snap := s.Snapshot(); snap.TotalClicks != 0 {
		t.Fatalf("expected no clicks recorded")
	}
}

func TestStartTwiceIsRejected(t *testing.T) {
	s, _, sched, _ := newTestSession(t, model.DefaultGameConfig())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	if len(sched.timers) != 1 {
		t.Fatalf("expected one deadline timer, got %d", len(sched.timers))
	}
	if sched.timers[0].d != 10*time.Second {
		t.Fatalf("expected 10s deadline, got %v", sched.timers[0].d)
	}
}

func TestRateExampleFromSessionStart(t *testing.T) {
	s, clock, _, _ := newTestSession(t, model.GameConfig{Mode: model.Endless, TimeLimit: 10})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	var res ClickResult
	prev := 0.0
	for _, at := range []float64{0, 0.5, 0.9, 1.2} {
		clock.Advance(time.Duration((at - prev) * float64(time.Second)))
		prev = at
		var err error
		res, err = s.Click()
		if err != nil {
			t.Fatalf("click: %v", err)
		}
	}
	if res.Rate != 3 {
		t.Fatalf("expected rate 3 at t=1.2, got %d", res.Rate)
	}
	snap := s.Snapshot()
	if len(snap.Samples) != 3 {
		t.Fatalf("expected the t=0 click to produce no sample, got %d samples", len(snap.Samples))
	}
	if !snap.Plottable || !res.Plottable {
		t.Fatalf("expected series to be plottable with 3 samples")
	}
	if snap.MaxRate != 3 {
		t.Fatalf("expected max rate 3, got %d", snap.MaxRate)
	}
}

func TestSingleSampleIsNotPlottable(t *testing.T) {
	s, clock, _, _ := newTestSession(t, model.GameConfig{Mode: model.Practice, TimeLimit: 5})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(100 * time.Millisecond)
	res, err := s.Click()
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if res.Plottable {
		t.Fatalf("expected a single sample not to be plottable")
	}
}

func TestEndIsIdempotent(t *testing.T) {
	s, clock, sched, rec := newTestSession(t, model.GameConfig{Mode: model.TimeTrial, TimeLimit: 10})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 20; i++ {
		clock.Advance(500 * time.Millisecond)
		if _, err := s.Click(); err != nil {
			t.Fatalf("click %d: %v", i, err)
		}
	}
	if !s.Tick() {
		t.Fatalf("expected polling tick to end the game at the deadline")
	}
	sched.fireAll()
	if _, ok := s.End(); ok {
		t.Fatalf("expected a second End to be a no-op")
	}
	if s.Tick() {
		t.Fatalf("expected tick after end to do nothing")
	}
	if len(rec.summaries) != 1 {
		t.Fatalf("expected exactly one summary, got %d", len(rec.summaries))
	}
	got := rec.summaries[0]
	if got.TotalClicks != 20 || got.TotalTime != 10 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if math.Abs(got.FinalRate-2.0) > 1e-9 {
		t.Fatalf("expected final rate 2.0, got %f", got.FinalRate)
	}
	if got.ID == "" || got.Mode != model.TimeTrial || got.TimeLimit != 10 {
		t.Fatalf("unexpected summary metadata: %+v", got)
	}
	if s.State() != Ended {
		t.Fatalf("expected Ended, got %v", s.State())
	}
	if len(rec.samples[0]) != 20 {
		t.Fatalf("expected 20 samples recorded, got %d", len(rec.samples[0]))
	}
}

func TestDeadlineCallbackEndsGame(t *testing.T) {
	s, clock, sched, rec := newTestSession(t, model.GameConfig{Mode: model.TimeTrial, TimeLimit: 5})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(time.Second)
	if _, err := s.Click(); err != nil {
		t.Fatalf("click: %v", err)
	}
	if s.Tick() {
		t.Fatalf("expected tick before the deadline to keep the game running")
	}
	clock.Advance(4 * time.Second)
	sched.fireAll()
	if s.State() != Ended {
		t.Fatalf("expected deadline to end game, got %v", s.State())
	}
	if s.Tick() {
		t.Fatalf("expected tick after the callback to be a no-op")
	}
	if len(rec.summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(rec.summaries))
	}
	if s.Pending() {
		t.Fatalf("expected no pending deadline after end")
	}
}

func TestEndWithoutClicksRecordsNothing(t *testing.T) {
	s, clock, _, rec := newTestSession(t, model.GameConfig{Mode: model.Endless, TimeLimit: 10})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(2 * time.Second)
	if _, ok := s.End(); !ok {
		t.Fatalf("expected End to finish the active game")
	}
	if len(rec.summaries) != 0 {
		t.Fatalf("expected no summary for an empty game")
	}
	if s.Snapshot().Last != nil {
		t.Fatalf("expected no last summary for an empty game")
	}
}

func TestResetFromAnyState(t *testing.T) {
	s, clock, sched, rec := newTestSession(t, model.GameConfig{Mode: model.TimeTrial, TimeLimit: 10})

	s.Reset()
	assertReady(t, s)

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(300 * time.Millisecond)
	if _, err := s.Click(); err != nil {
		t.Fatalf("click: %v", err)
	}
	s.Reset()
	assertReady(t, s)
	if !sched.timers[0].stopped {
		t.Fatalf("expected reset to stop the deadline timer")
	}

	// A deadline that fires after reset must not end the next game.
	if err := s.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	clock.Advance(300 * time.Millisecond)
	if _, err := s.Click(); err != nil {
		t.Fatalf("click: %v", err)
	}
	sched.timers[0].fn()
	if s.State() != Active {
		t.Fatalf("expected stale deadline to be ignored, got %v", s.State())
	}

	clock.Advance(10 * time.Second)
	s.Tick()
	if s.State() != Ended {
		t.Fatalf("expected game to end, got %v", s.State())
	}
	s.Reset()
	assertReady(t, s)
	if len(rec.summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(rec.summaries))
	}
}

func assertReady(t *testing.T, s *Session) {
	t.Helper()
	snap := s.Snapshot()
	if snap.State != Ready {
		t.Fatalf("expected Ready, got %v", snap.State)
	}
	if snap.TotalClicks != 0 || len(snap.Samples) != 0 || snap.MaxRate != 0 {
		t.Fatalf("expected empty session, got %+v", snap)
	}
	if s.Pending() {
		t.Fatalf("expected no pending deadline")
	}
}

func TestStartAfterEndNeedsReset(t *testing.T) {
	s, _, _, _ := newTestSession(t, model.GameConfig{Mode: model.Endless, TimeLimit: 10})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.End()
	if err := s.Start(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	s.Reset()
	if err := s.Start(); err != nil {
		t.Fatalf("start after reset: %v", err)
	}
}

func TestMaxRateResetsOnStart(t *testing.T) {
	s, clock, _, _ := newTestSession(t, model.GameConfig{Mode: model.Endless, TimeLimit: 10})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	prev := 0
	for i := 0; i < 10; i++ {
		clock.Advance(50 * time.Millisecond)
		if _, err := s.Click(); err != nil {
			t.Fatalf("click: %v", err)
		}
		snap := s.Snapshot()
		if snap.MaxRate < prev {
			t.Fatalf("max rate decreased")
		}
		prev = snap.MaxRate
	}
	clock.Advance(5 * time.Second)
	if got := s.Snapshot(); got.CurrentRate != 0 || got.MaxRate != 10 {
		t.Fatalf("expected idle rate 0 and max 10, got %d/%d", got.CurrentRate, got.MaxRate)
	}
	s.End()
	s.Reset()
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Snapshot().MaxRate != 0 {
		t.Fatalf("expected max rate to reset on start")
	}
}

func TestConfigureRules(t *testing.T) {
	s, _, _, _ := newTestSession(t, model.DefaultGameConfig())
	if err := s.Configure(model.GameConfig{Mode: model.Endless, TimeLimit: 7}); !errors.Is(err, ErrInvalidTimeLimit) {
		t.Fatalf("expected ErrInvalidTimeLimit, got %v", err)
	}
	if err := s.Configure(model.GameConfig{Mode: model.Endless, TimeLimit: 15}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Configure(model.GameConfig{Mode: model.TimeTrial, TimeLimit: 5}); !errors.Is(err, ErrActive) {
		t.Fatalf("expected ErrActive, got %v", err)
	}
	if s.Config().Mode != model.Endless {
		t.Fatalf("expected config to stay unchanged while active")
	}
}

func TestAbuseDetectionIsAdvisory(t *testing.T) {
	s, clock, _, _ := newTestSession(t, model.GameConfig{Mode: model.Endless, TimeLimit: 10}, WithAbuseThreshold(3))
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	var flagged int
	for i := 0; i < 6; i++ {
		clock.Advance(10 * time.Millisecond)
		res, err := s.Click()
		if err != nil {
			t.Fatalf("click %d: %v", i, err)
		}
		if res.AbuseSuspected {
			flagged++
		}
	}
	if flagged != 3 {
		t.Fatalf("expected clicks 4-6 to be flagged, got %d", flagged)
	}
	if s.Snapshot().TotalClicks != 6 {
		t.Fatalf("expected flagged clicks to still count")
	}

	s.SetAutoDetect(false)
	clock.Advance(10 * time.Millisecond)
	res, err := s.Click()
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if res.AbuseSuspected {
		t.Fatalf("expected detection to be off")
	}
}

func TestSnapshotTimers(t *testing.T) {
	s, clock, _, _ := newTestSession(t, model.GameConfig{Mode: model.TimeTrial, TimeLimit: 5})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(1500 * time.Millisecond)
	snap := s.Snapshot()
	if snap.Elapsed != 1500*time.Millisecond || snap.Remaining != 3500*time.Millisecond {
		t.Fatalf("unexpected timers: elapsed=%v remaining=%v", snap.Elapsed, snap.Remaining)
	}
	clock.Advance(10 * time.Second)
	if got := s.Snapshot().Remaining; got != 0 {
		t.Fatalf("expected remaining to clamp at zero, got %v", got)
	}
}

func TestSystemSchedulerRace(t *testing.T) {
	rec := &memRecorder{}
	s := New(rec, WithConfig(model.GameConfig{Mode: model.TimeTrial, TimeLimit: 5}))
	cfgClock := newFakeClock()
	s.clock = cfgClock
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Click(); err != nil {
		t.Fatalf("click: %v", err)
	}
	cfgClock.Advance(5 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Tick()
			s.End()
		}()
	}
	wg.Wait()
	if len(rec.summaries) != 1 {
		t.Fatalf("expected one summary from concurrent enders, got %d", len(rec.summaries))
	}
	s.Reset()
}
