// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Mode selects how a game ends.
type Mode int

const (
	// TimeTrial ends automatically after the time limit.
	TimeTrial Mode = iota
	// Endless runs until reset.
	Endless
	// Practice runs until reset and is meant for warming up.
	Practice
)

// Modes lists every mode in menu order.
var Modes = []Mode{TimeTrial, Endless, Practice}

// TimeLimits lists the allowed time-trial limits in seconds.
var TimeLimits = []int{5, 10, 15, 30}

var modeNames = map[Mode]string{
	TimeTrial: "Time Trial",
	Endless:   "Endless Mode",
	Practice:  "Practice Mode",
}

// String returns the display name of the mode.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Next returns the mode after m, wrapping around.
func (m Mode) Next() Mode {
	for i, mode := range Modes {
		if mode == m {
			return Modes[(i+1)%len(Modes)]
		}
	}
	return TimeTrial
}

// ParseMode accepts display names and short forms ("time", "endless", "practice").
func ParseMode(s string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", " ", "_", " ").Replace(key)
	switch key {
	case "time trial", "timetrial", "time", "trial":
		return TimeTrial, nil
	case "endless mode", "endless":
		return Endless, nil
	case "practice mode", "practice":
		return Practice, nil
	}
	return TimeTrial, fmt.Errorf("unknown mode %q (use time, endless or practice)", s)
}

// MarshalJSON encodes the mode by display name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a mode from its display name.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ValidTimeLimit reports whether seconds is an allowed time limit.
func ValidTimeLimit(seconds int) bool {
	for _, limit := range TimeLimits {
		if limit == seconds {
			return true
		}
	}
	return false
}

// NextTimeLimit returns the allowed limit after seconds, wrapping around.
func NextTimeLimit(seconds int) int {
	for i, limit := range TimeLimits {
		if limit == seconds {
			return TimeLimits[(i+1)%len(TimeLimits)]
		}
	}
	return TimeLimits[0]
}

// GameConfig defines how the next game is played.
type GameConfig struct {
	Mode      Mode
	TimeLimit int
}

// Duration returns the time limit as a duration.
func (c GameConfig) Duration() time.Duration {
	return time.Duration(c.TimeLimit) * time.Second
}

// DefaultGameConfig is a 10 second time trial.
func DefaultGameConfig() GameConfig {
	return GameConfig{Mode: TimeTrial, TimeLimit: 10}
}

// RateSample is one point of the live rate chart.
type RateSample struct {
	Elapsed time.Duration
	Rate    int
}

// SessionSummary captures a completed game.
type SessionSummary struct {
	ID          string    `json:"id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Mode        Mode      `json:"mode"`
	TimeLimit   int       `json:"time_limit"`
	TotalClicks int       `json:"total_clicks"`
	TotalTime   float64   `json:"total_time"`
	FinalRate   float64   `json:"final_rate"`
	MaxRate     float64   `json:"max_rate"`
}

// Settings holds user preferences persisted between runs.
type Settings struct {
	Theme        string `json:"theme"`
	SoundEnabled bool   `json:"sound_enabled"`
	ButtonSize   string `json:"button_size"`
	AutoDetect   bool   `json:"auto_detect"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		Theme:        "dark",
		SoundEnabled: true,
		ButtonSize:   "large",
		AutoDetect:   true,
	}
}

// HistoryFilter defines filters and options for stats output.
type HistoryFilter struct {
	Mode        *Mode
	Since       *time.Time
	Last        int
	CurveWindow int
}

// SessionAggregate is an archived session as returned by the store.
type SessionAggregate struct {
	SessionID   string
	EndedAt     time.Time
	Mode        Mode
	TimeLimit   int
	TotalClicks int
	TotalTimeMs int64
	FinalRate   float64
	MaxRate     float64
}
