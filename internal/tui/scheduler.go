package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/cpsclick/internal/game"
)

// deadlineMsg carries a timer callback into the update loop.
type deadlineMsg struct {
	fire func()
}

// Scheduler runs game deadlines on the Bubble Tea goroutine. The timer
// goroutine only posts a message; the callback itself runs inside Update.
// Until a program is bound, callbacks run on the timer goroutine.
type Scheduler struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

var _ game.Scheduler = (*Scheduler)(nil)

// NewScheduler returns an unbound scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Bind routes future callbacks through p.
func (s *Scheduler) Bind(p *tea.Program) {
	s.BindFunc(p.Send)
}

// BindFunc routes future callbacks through send.
func (s *Scheduler) BindFunc(send func(tea.Msg)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send = send
}

// AfterFunc implements game.Scheduler.
func (s *Scheduler) AfterFunc(d time.Duration, f func()) game.Timer {
	return time.AfterFunc(d, func() {
		s.mu.Lock()
		send := s.send
		s.mu.Unlock()
		if send == nil {
			f()
			return
		}
		send(deadlineMsg{fire: f})
	})
}
