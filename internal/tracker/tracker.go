// Package tracker computes click rates over a trailing time window.
package tracker

import "time"

const (
	// DefaultWindow is the trailing window used for the current rate.
	DefaultWindow = time.Second
	// DefaultCapacity bounds the number of retained click timestamps.
	DefaultCapacity = 1000
)

// Option configures a Tracker.
type Option func(*Tracker)

// WithWindow sets the trailing window length.
func WithWindow(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.window = d
		}
	}
}

// WithCapacity bounds how many timestamps are kept. The oldest are dropped first.
func WithCapacity(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// Tracker records click timestamps and derives current, maximum and average rates.
//
// Timestamps are kept in insertion order, which is also time order. Rate
// recounts the whole record on every call; the record is short enough for
// that to be cheap.
type Tracker struct {
	window   time.Duration
	capacity int

	clicks  []time.Time
	total   int
	maxRate int
}

// New returns an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		window:   DefaultWindow,
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Window returns the trailing window length.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// Record appends a click at now.
func (t *Tracker) Record(now time.Time) {
	if n := len(t.clicks); n > 0 && now.Before(t.clicks[n-1]) {
		now = t.clicks[n-1]
	}
	if len(t.clicks) >= t.capacity {
		copy(t.clicks, t.clicks[1:])
		t.clicks = t.clicks[:len(t.clicks)-1]
	}
	t.clicks = append(t.clicks, now)
	t.total++
}

// Rate returns the number of clicks no older than the window at now and
// folds it into the running maximum.
func (t *Tracker) Rate(now time.Time) int {
	count := 0
	for i := len(t.clicks) - 1; i >= 0; i-- {
		age := now.Sub(t.clicks[i])
		if age < 0 {
			continue
		}
		if age > t.window {
			break
		}
		count++
	}
	if count > t.maxRate {
		t.maxRate = count
	}
	return count
}

// MaxRate returns the highest rate seen since the last reset.
func (t *Tracker) MaxRate() int {
	return t.maxRate
}

// Total returns the number of clicks since the last reset, including any
// dropped from the bounded record.
func (t *Tracker) Total() int {
	return t.total
}

// Average returns clicks per second between start and now.
func (t *Tracker) Average(now, start time.Time) float64 {
	elapsed := now.Sub(start).Seconds()
	if elapsed <= 0 || t.total == 0 {
		return 0
	}
	return float64(t.total) / elapsed
}

// Reset clears all clicks and the running maximum.
func (t *Tracker) Reset() {
	t.clicks = t.clicks[:0]
	t.total = 0
	t.maxRate = 0
}
