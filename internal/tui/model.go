// Package tui provides the Bubble Tea click game interface.
package tui

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/cpsclick/internal/config"
	"github.com/verte-zerg/cpsclick/internal/game"
	"github.com/verte-zerg/cpsclick/internal/history"
	"github.com/verte-zerg/cpsclick/internal/model"
	statsPkg "github.com/verte-zerg/cpsclick/internal/stats"
)

const (
	defaultRefresh   = 100 * time.Millisecond
	defaultViewWidth = 72
	chartHeight      = 8

	msgNotStarted   = "Please press s to start a game first!"
	msgAutoClicker  = "Unusually high CPS detected! Are you using an auto-clicker?"
	msgNoExportData = "No session data available for export."
)

type noticeLevel int

const (
	noticeInfo noticeLevel = iota
	noticeWarn
	noticeError
)

type notice struct {
	level noticeLevel
	text  string
}

type tickMsg time.Time

// Config wires the game screen to its collaborators.
type Config struct {
	Session      *game.Session
	Recorder     *history.Recorder
	Settings     model.Settings
	SettingsPath string
	ExportDir    string
	// Refresh is the display poll interval; it also drives the deadline
	// check for time trials.
	Refresh time.Duration
	Logger  *slog.Logger
	// Bell receives a BEL byte per click when sound is enabled. Nil mutes.
	Bell io.Writer
	Now  func() time.Time
}

// Model implements the Bubble Tea game screen.
type Model struct {
	session      *game.Session
	recorder     *history.Recorder
	settings     model.Settings
	settingsPath string
	exportDir    string
	refresh      time.Duration
	logger       *slog.Logger
	bell         io.Writer
	now          func() time.Time
	theme        theme

	width  int
	height int

	notice  notice
	pressed bool
}

// NewModel constructs the game screen.
func NewModel(cfg Config) *Model {
	m := &Model{
		session:      cfg.Session,
		recorder:     cfg.Recorder,
		settings:     cfg.Settings,
		settingsPath: cfg.SettingsPath,
		exportDir:    cfg.ExportDir,
		refresh:      cfg.Refresh,
		logger:       cfg.Logger,
		bell:         cfg.Bell,
		now:          cfg.Now,
	}
	if m.refresh <= 0 {
		m.refresh = defaultRefresh
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.exportDir == "" {
		m.exportDir = "."
	}
	m.theme = themeFor(m.settings.Theme, m.settings.ButtonSize)
	m.session.SetAutoDetect(m.settings.AutoDetect)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		m.pressed = false
		if m.session.Tick() {
			m.gameEnded()
		}
		return m, m.tick()
	case deadlineMsg:
		wasActive := m.session.State() == game.Active
		msg.fire()
		if wasActive && m.session.State() == game.Ended {
			m.gameEnded()
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.session.Reset()
		return m, tea.Quit
	case " ", "enter":
		return m, m.click()
	case "s":
		m.start()
	case "x":
		m.finish()
	case "r":
		m.session.Reset()
		m.setNotice(noticeInfo, "Game reset.")
	case "m":
		cfg := m.session.Config()
		cfg.Mode = cfg.Mode.Next()
		m.configure(cfg, fmt.Sprintf("Game mode set to: %s", cfg.Mode))
	case "t":
		cfg := m.session.Config()
		cfg.TimeLimit = model.NextTimeLimit(cfg.TimeLimit)
		m.configure(cfg, fmt.Sprintf("Time limit set to: %d seconds", cfg.TimeLimit))
	case "a":
		m.settings.AutoDetect = !m.settings.AutoDetect
		m.session.SetAutoDetect(m.settings.AutoDetect)
		m.setNotice(noticeInfo, "Auto-clicker detection "+onOff(m.settings.AutoDetect)+".")
	case "b":
		m.settings.SoundEnabled = !m.settings.SoundEnabled
		m.setNotice(noticeInfo, "Sound "+onOff(m.settings.SoundEnabled)+".")
	case "w":
		m.saveSettings()
	case "e":
		m.export()
	}
	return m, nil
}

func (m *Model) click() tea.Cmd {
	res, err := m.session.Click()
	if errors.Is(err, game.ErrNotActive) {
		m.setNotice(noticeInfo, msgNotStarted)
		return nil
	}
	if err != nil {
		m.setNotice(noticeError, err.Error())
		return nil
	}
	m.pressed = true
	if res.AbuseSuspected {
		m.setNotice(noticeWarn, msgAutoClicker)
	} else if m.notice.level != noticeWarn {
		m.clearNotice()
	}
	return m.ring()
}

func (m *Model) start() {
	if m.session.State() == game.Ended {
		m.session.Reset()
	}
	err := m.session.Start()
	switch {
	case errors.Is(err, game.ErrAlreadyActive):
		m.setNotice(noticeInfo, "A game is already in progress.")
	case err != nil:
		m.setNotice(noticeError, err.Error())
	default:
		m.setNotice(noticeInfo, "Game started. Click!")
	}
}

func (m *Model) finish() {
	if _, ok := m.session.End(); !ok {
		m.setNotice(noticeInfo, msgNotStarted)
		return
	}
	m.gameEnded()
}

func (m *Model) configure(cfg model.GameConfig, done string) {
	err := m.session.Configure(cfg)
	switch {
	case errors.Is(err, game.ErrActive):
		m.setNotice(noticeInfo, "Finish or reset the current game first.")
	case err != nil:
		m.setNotice(noticeError, err.Error())
	default:
		m.setNotice(noticeInfo, done)
	}
}

func (m *Model) gameEnded() {
	snap := m.session.Snapshot()
	if snap.Last == nil {
		m.setNotice(noticeInfo, "Game over. No clicks were registered.")
		return
	}
	m.setNotice(noticeInfo, fmt.Sprintf("Game complete! Final CPS: %.2f", snap.Last.FinalRate))
}

func (m *Model) saveSettings() {
	if err := config.SaveSettings(m.settingsPath, m.settings); err != nil {
		m.logger.Error("failed to save settings", "path", m.settingsPath, "error", err)
		m.setNotice(noticeError, fmt.Sprintf("Failed to save settings: %v", err))
		return
	}
	m.logger.Info("settings saved", "path", m.settingsPath)
	m.setNotice(noticeInfo, "Settings saved successfully!")
}

func (m *Model) export() {
	path, err := m.recorder.Export(m.exportDir, m.now())
	switch {
	case errors.Is(err, history.ErrNoData):
		m.setNotice(noticeInfo, msgNoExportData)
	case err != nil:
		m.setNotice(noticeError, fmt.Sprintf("Export failed: %v", err))
	default:
		m.setNotice(noticeInfo, fmt.Sprintf("Data exported to: %s", path))
	}
}

func (m *Model) ring() tea.Cmd {
	if !m.settings.SoundEnabled || m.bell == nil {
		return nil
	}
	bell := m.bell
	return func() tea.Msg {
		if _, err := io.WriteString(bell, "\a"); err != nil {
			// Best-effort bell.
			_ = err
		}
		return nil
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) setNotice(level noticeLevel, text string) {
	m.notice = notice{level: level, text: text}
}

func (m *Model) clearNotice() {
	m.notice = notice{}
}

// View implements tea.Model.
func (m *Model) View() string {
	snap := m.session.Snapshot()
	sections := []string{
		m.theme.title.Render("CPS Clicker Game"),
		m.renderHeader(snap),
		m.theme.label.Render(timerLine(snap)),
		m.renderButton(snap),
		m.theme.label.Render(strings.Join(statsLines(snap), "   ")),
		m.renderChart(snap),
	}
	if results := m.renderResults(snap); results != "" {
		sections = append(sections, results)
	}
	sections = append(sections, m.renderNotice(), m.renderHelp())
	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) contentWidth() int {
	if m.width <= 0 {
		return defaultViewWidth
	}
	return max(int(float64(m.width)*0.8), 20)
}

func (m *Model) renderHeader(snap game.Snapshot) string {
	segments := []string{
		"Mode: " + snap.Config.Mode.String(),
		fmt.Sprintf("Limit: %ds", snap.Config.TimeLimit),
		"Auto-detect: " + onOff(m.settings.AutoDetect),
		"Sound: " + onOff(m.settings.SoundEnabled),
		fmt.Sprintf("Sessions: %d", m.recorder.Len()),
	}
	return m.theme.muted.Render(strings.Join(wrapSegments(segments, "   ", m.contentWidth()), "\n"))
}

func (m *Model) renderButton(snap game.Snapshot) string {
	switch snap.State {
	case game.Active:
		if m.pressed {
			return m.theme.buttonHit.Render("CLICK ME NOW!")
		}
		return m.theme.buttonActive.Render("CLICK ME NOW!")
	case game.Ended:
		return m.theme.buttonIdle.Render("GAME OVER")
	default:
		return m.theme.buttonIdle.Render("CLICK ME!")
	}
}

func (m *Model) renderChart(snap game.Snapshot) string {
	var b strings.Builder
	b.WriteString(m.theme.label.Render("Real-Time CPS Graph"))
	b.WriteByte('\n')
	if err := statsPkg.RenderRateChart(&b, snap.Samples, m.contentWidth(), chartHeight, true); err != nil {
		m.logger.Error("failed to render chart", "error", err)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderResults(snap game.Snapshot) string {
	if snap.State != game.Ended || snap.Last == nil {
		return ""
	}
	return m.theme.panel.Render(strings.Join(resultLines(*snap.Last), "\n"))
}

func (m *Model) renderNotice() string {
	switch m.notice.level {
	case noticeWarn:
		return m.theme.warn.Render(m.notice.text)
	case noticeError:
		return m.theme.err.Render(m.notice.text)
	default:
		return m.theme.info.Render(m.notice.text)
	}
}

func (m *Model) renderHelp() string {
	segments := []string{
		"space/enter click", "s start", "x finish", "r reset", "m mode", "t time",
		"a auto-detect", "b sound", "w save settings", "e export", "q quit",
	}
	return m.theme.muted.Render(strings.Join(wrapSegments(segments, " · ", m.contentWidth()), "\n"))
}

func timerLine(snap game.Snapshot) string {
	switch snap.State {
	case game.Active:
		if snap.Config.Mode == model.TimeTrial {
			return fmt.Sprintf("Time Remaining: %.1fs", snap.Remaining.Seconds())
		}
		return fmt.Sprintf("Elapsed Time: %.1fs", snap.Elapsed.Seconds())
	case game.Ended:
		return "Game Over - Press s to Play Again"
	default:
		return "Game Ready - Press s to Start!"
	}
}

func statsLines(snap game.Snapshot) []string {
	return []string{
		fmt.Sprintf("Total Clicks: %d", snap.TotalClicks),
		fmt.Sprintf("Current CPS: %.1f", float64(snap.CurrentRate)),
		fmt.Sprintf("Max CPS: %.1f", float64(snap.MaxRate)),
		fmt.Sprintf("Average CPS: %.1f", snap.AverageRate),
	}
}

func resultLines(s model.SessionSummary) []string {
	return []string{
		"Game Results",
		"",
		fmt.Sprintf("Total Clicks: %d", s.TotalClicks),
		fmt.Sprintf("Game Duration: %.2f Seconds", s.TotalTime),
		fmt.Sprintf("Final CPS: %.2f", s.FinalRate),
		fmt.Sprintf("Maximum CPS: %.2f", s.MaxRate),
		fmt.Sprintf("Average CPS: %.2f", s.FinalRate),
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
