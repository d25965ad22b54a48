// Package game implements the click game session state machine.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/cpsclick/internal/model"
	"github.com/verte-zerg/cpsclick/internal/tracker"
)

// DefaultAbuseThreshold is the rate above which auto-clicking is suspected.
const DefaultAbuseThreshold = 50

var (
	// ErrNotActive is returned for clicks outside an active game.
	ErrNotActive = errors.New("game not started")
	// ErrAlreadyActive is returned when starting a running game.
	ErrAlreadyActive = errors.New("game already active")
	// ErrNotReady is returned when starting an ended game without a reset.
	ErrNotReady = errors.New("game ended; reset before starting again")
	// ErrActive is returned when changing the config of a running game.
	ErrActive = errors.New("cannot change settings while a game is active")
	// ErrInvalidTimeLimit is returned for limits outside model.TimeLimits.
	ErrInvalidTimeLimit = errors.New("invalid time limit")
)

// State is the lifecycle stage of a session.
type State int32

const (
	// Ready waits for Start.
	Ready State = iota
	// Active accepts clicks.
	Active
	// Ended holds the final results until Reset.
	Ended
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Active:
		return "active"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Recorder receives summaries of completed games.
type Recorder interface {
	Record(summary model.SessionSummary, samples []model.RateSample)
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithScheduler overrides how the time-trial deadline is scheduled.
func WithScheduler(sch Scheduler) Option {
	return func(s *Session) { s.scheduler = sch }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAbuseThreshold sets the rate above which a click is flagged.
func WithAbuseThreshold(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.abuseThreshold = n
		}
	}
}

// WithAutoDetect enables or disables auto-clicker detection.
func WithAutoDetect(enabled bool) Option {
	return func(s *Session) { s.autoDetect = enabled }
}

// WithTrackerOptions passes options to the click tracker.
func WithTrackerOptions(opts ...tracker.Option) Option {
	return func(s *Session) { s.trackerOpts = append(s.trackerOpts, opts...) }
}

// WithConfig sets the initial game config.
func WithConfig(cfg model.GameConfig) Option {
	return func(s *Session) { s.cfg = cfg }
}

// ClickResult describes a registered click.
type ClickResult struct {
	Rate           int
	Total          int
	Elapsed        time.Duration
	Plottable      bool
	AbuseSuspected bool
}

// Snapshot is a read-only view of the session for rendering.
type Snapshot struct {
	State       State
	Config      model.GameConfig
	TotalClicks int
	CurrentRate int
	MaxRate     int
	AverageRate float64
	Elapsed     time.Duration
	Remaining   time.Duration
	Samples     []model.RateSample
	Plottable   bool
	Last        *model.SessionSummary
}

// Session runs one game at a time.
//
// The state field is the only gate for transitions: End moves Active to
// Ended with a compare-and-swap, so the deadline timer and the polling Tick
// can both call it and exactly one wins. mu protects the remaining fields.
type Session struct {
	clock          Clock
	scheduler      Scheduler
	recorder       Recorder
	logger         *slog.Logger
	abuseThreshold int
	autoDetect     bool
	trackerOpts    []tracker.Option

	state atomic.Int32

	mu         sync.Mutex
	cfg        model.GameConfig
	tracker    *tracker.Tracker
	startedAt  time.Time
	endedAt    time.Time
	samples    []model.RateSample
	finalRate  int
	timer      Timer
	generation uint64
	last       *model.SessionSummary
}

// New returns a Ready session. recorder may be nil.
func New(recorder Recorder, opts ...Option) *Session {
	s := &Session{
		clock:          SystemClock(),
		scheduler:      SystemScheduler(),
		recorder:       recorder,
		logger:         slog.New(slog.DiscardHandler),
		abuseThreshold: DefaultAbuseThreshold,
		autoDetect:     true,
		cfg:            model.DefaultGameConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracker = tracker.New(s.trackerOpts...)
	return s
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Config returns the config used by the next or current game.
func (s *Session) Config() model.GameConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Configure replaces the game config. Refused while a game is active.
func (s *Session) Configure(cfg model.GameConfig) error {
	if !model.ValidTimeLimit(cfg.TimeLimit) {
		return fmt.Errorf("%w: %d", ErrInvalidTimeLimit, cfg.TimeLimit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == Active {
		return ErrActive
	}
	if s.cfg != cfg {
		s.logger.Info("game config changed", "mode", cfg.Mode.String(), "time_limit", cfg.TimeLimit)
	}
	s.cfg = cfg
	return nil
}

// SetAutoDetect toggles auto-clicker detection.
func (s *Session) SetAutoDetect(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoDetect = enabled
}

// Start begins a game. In time-trial mode it schedules the deadline.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CompareAndSwap(int32(Ready), int32(Active)) {
		if s.State() == Active {
			return ErrAlreadyActive
		}
		return ErrNotReady
	}
	s.clearLocked()
	s.startedAt = s.clock.Now()
	if s.cfg.Mode == model.TimeTrial {
		gen := s.generation
		s.timer = s.scheduler.AfterFunc(s.cfg.Duration(), func() {
			s.endGeneration(gen)
		})
	}
	s.logger.Info("game started", "mode", s.cfg.Mode.String(), "time_limit", s.cfg.TimeLimit)
	return nil
}

// Click registers one click in the active game.
func (s *Session) Click() (ClickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != Active {
		return ClickResult{}, ErrNotActive
	}
	now := s.clock.Now()
	s.tracker.Record(now)
	rate := s.tracker.Rate(now)
	elapsed := now.Sub(s.startedAt)
	if elapsed > 0 {
		s.samples = append(s.samples, model.RateSample{Elapsed: elapsed, Rate: rate})
	}
	res := ClickResult{
		Rate:      rate,
		Total:     s.tracker.Total(),
		Elapsed:   elapsed,
		Plottable: len(s.samples) > 1,
	}
	if s.autoDetect && rate > s.abuseThreshold {
		res.AbuseSuspected = true
		s.logger.Warn("unusually high click rate", "rate", rate, "threshold", s.abuseThreshold)
	}
	return res, nil
}

// End finishes the active game. It reports false when no game was active,
// which makes repeated calls harmless.
func (s *Session) End() (model.SessionSummary, bool) {
	s.mu.Lock()
	summary, samples, ok := s.endLocked()
	s.mu.Unlock()
	return s.deliver(summary, samples, ok)
}

// Tick checks the time-trial deadline and ends the game once it has passed.
// It reports whether this call ended the game.
func (s *Session) Tick() bool {
	s.mu.Lock()
	if s.State() != Active || s.cfg.Mode != model.TimeTrial {
		s.mu.Unlock()
		return false
	}
	if s.remainingLocked(s.clock.Now()) > 0 {
		s.mu.Unlock()
		return false
	}
	summary, samples, ok := s.endLocked()
	s.mu.Unlock()
	s.deliver(summary, samples, ok)
	return ok
}

// Reset cancels any pending deadline and returns to Ready with no data.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.generation++
	s.state.Store(int32(Ready))
	s.clearLocked()
	s.startedAt = time.Time{}
	s.last = nil
	s.logger.Info("game reset")
}

// Pending reports whether a deadline callback is scheduled.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Snapshot returns the values the presentation layer renders.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.State()
	snap := Snapshot{
		State:       state,
		Config:      s.cfg,
		TotalClicks: s.tracker.Total(),
		MaxRate:     s.tracker.MaxRate(),
		Samples:     append([]model.RateSample(nil), s.samples...),
		Plottable:   len(s.samples) > 1,
	}
	if s.last != nil {
		last := *s.last
		snap.Last = &last
	}
	switch state {
	case Active:
		now := s.clock.Now()
		snap.CurrentRate = s.tracker.Rate(now)
		snap.MaxRate = s.tracker.MaxRate()
		snap.AverageRate = s.tracker.Average(now, s.startedAt)
		snap.Elapsed = now.Sub(s.startedAt)
		if s.cfg.Mode == model.TimeTrial {
			snap.Remaining = s.remainingLocked(now)
		}
	case Ended:
		snap.CurrentRate = s.finalRate
		snap.AverageRate = s.tracker.Average(s.endedAt, s.startedAt)
		snap.Elapsed = s.endedAt.Sub(s.startedAt)
	}
	return snap
}

func (s *Session) endGeneration(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	summary, samples, ok := s.endLocked()
	s.mu.Unlock()
	s.deliver(summary, samples, ok)
}

func (s *Session) endLocked() (model.SessionSummary, []model.RateSample, bool) {
	if !s.state.CompareAndSwap(int32(Active), int32(Ended)) {
		return model.SessionSummary{}, nil, false
	}
	s.stopTimerLocked()
	s.generation++
	now := s.clock.Now()
	s.endedAt = now
	s.finalRate = s.tracker.Rate(now)

	total := s.tracker.Total()
	totalTime := now.Sub(s.startedAt).Seconds()
	finalRate := 0.0
	if totalTime > 0 {
		finalRate = float64(total) / totalTime
	}
	summary := model.SessionSummary{
		ID:          uuid.NewString(),
		Timestamp:   now,
		Mode:        s.cfg.Mode,
		TimeLimit:   s.cfg.TimeLimit,
		TotalClicks: total,
		TotalTime:   totalTime,
		FinalRate:   finalRate,
		MaxRate:     float64(s.tracker.MaxRate()),
	}
	s.logger.Info("game ended", "clicks", total, "total_time", totalTime, "final_rate", finalRate, "max_rate", summary.MaxRate)
	if total == 0 {
		s.last = nil
		return summary, nil, true
	}
	s.last = &summary
	return summary, append([]model.RateSample(nil), s.samples...), true
}

func (s *Session) deliver(summary model.SessionSummary, samples []model.RateSample, ok bool) (model.SessionSummary, bool) {
	if ok && summary.TotalClicks > 0 && s.recorder != nil {
		s.recorder.Record(summary, samples)
	}
	return summary, ok
}

func (s *Session) remainingLocked(now time.Time) time.Duration {
	remaining := s.cfg.Duration() - now.Sub(s.startedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *Session) stopTimerLocked() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
}

func (s *Session) clearLocked() {
	s.tracker.Reset()
	s.samples = nil
	s.finalRate = 0
	s.endedAt = time.Time{}
}
