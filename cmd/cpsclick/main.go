// Package main provides the CLI entrypoint for cpsclick.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/cpsclick/internal/config"
	"github.com/verte-zerg/cpsclick/internal/game"
	"github.com/verte-zerg/cpsclick/internal/history"
	"github.com/verte-zerg/cpsclick/internal/logging"
	"github.com/verte-zerg/cpsclick/internal/model"
	"github.com/verte-zerg/cpsclick/internal/stats"
	"github.com/verte-zerg/cpsclick/internal/statsui"
	"github.com/verte-zerg/cpsclick/internal/store"
	"github.com/verte-zerg/cpsclick/internal/tui"
)

const (
	defaultMode        = "time"
	defaultTimeLimit   = 10
	defaultRefreshMs   = 100
	minRefreshMs       = 10
	defaultExportDir   = "."
	defaultCurveWindow = 5
)

var (
	playMode       string
	playTimeLimit  int
	playAutoDetect bool
	playAbuse      int
	playRefreshMs  int
	playExportDir  string
	playLogLevel   string

	exportDir string

	historyMode string
	historyLast int

	statsMode        string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsSync        bool

	settingsSound      bool
	settingsAutoDetect bool
	settingsTheme      string
	settingsButtonSize string
)

// playOptions is the validated result of flags and config.toml.
type playOptions struct {
	game      model.GameConfig
	abuse     int
	refresh   time.Duration
	exportDir string
	logLevel  slog.Level
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cpsclick",
		Short:         "Terminal clicks-per-second game",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.Flags().StringVar(&playMode, "mode", defaultMode, "game mode: time, endless, or practice")
	rootCmd.Flags().IntVar(&playTimeLimit, "time", defaultTimeLimit, "time trial limit in seconds (5, 10, 15, 30)")
	rootCmd.Flags().BoolVar(&playAutoDetect, "auto-detect", true, "warn when the click rate looks automated")
	rootCmd.Flags().IntVar(&playAbuse, "abuse-threshold", game.DefaultAbuseThreshold, "clicks per second that trigger the auto-clicker warning")
	rootCmd.Flags().IntVar(&playRefreshMs, "refresh", defaultRefreshMs, "display refresh interval in milliseconds")
	rootCmd.Flags().StringVar(&playExportDir, "export-dir", defaultExportDir, "directory for CSV exports")
	rootCmd.Flags().StringVar(&playLogLevel, "log-level", logging.LevelInfo, "log level: DEBUG, INFO, WARN, ERROR")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyPlayConfig(cmd, fileCfg.Game)
	opts, err := validatePlayFlags()
	if err != nil {
		return err
	}

	logger, closeLog := openLogger(opts.logLevel)
	defer closeLog()

	settingsPath := config.DefaultSettingsPath()
	settings := config.LoadSettings(settingsPath)
	if cmd.Flags().Changed("auto-detect") {
		settings.AutoDetect = playAutoDetect
	}

	recorderOpts := []history.Option{history.WithLogger(logger)}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		logErrf("session archive unavailable, stats will not include this run: %v\n", err)
		logger.Warn("session archive unavailable", "error", err)
	} else {
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}()
		recorderOpts = append(recorderOpts, history.WithArchive(st))
	}
	recorder := history.NewRecorder(config.DefaultHistoryPath(), recorderOpts...)
	recorder.Load()

	scheduler := tui.NewScheduler()
	session := game.New(recorder,
		game.WithScheduler(scheduler),
		game.WithLogger(logger),
		game.WithAbuseThreshold(opts.abuse),
		game.WithAutoDetect(settings.AutoDetect),
		game.WithConfig(opts.game),
	)
	model := tui.NewModel(tui.Config{
		Session:      session,
		Recorder:     recorder,
		Settings:     settings,
		SettingsPath: settingsPath,
		ExportDir:    opts.exportDir,
		Refresh:      opts.refresh,
		Logger:       logger,
		Bell:         os.Stderr,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())
	scheduler.Bind(program)
	logger.Info("cpsclick started", "mode", opts.game.Mode.String(), "time_limit", opts.game.TimeLimit, "sessions", recorder.Len())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func applyPlayConfig(cmd *cobra.Command, fileGame config.GameFileConfig) {
	applyStringConfig(cmd, "mode", &playMode, fileGame.Mode)
	applyIntConfig(cmd, "time", &playTimeLimit, fileGame.TimeLimit)
	applyIntConfig(cmd, "abuse-threshold", &playAbuse, fileGame.AbuseThreshold)
	applyIntConfig(cmd, "refresh", &playRefreshMs, fileGame.RefreshMs)
	applyStringConfig(cmd, "export-dir", &playExportDir, fileGame.ExportDir)
	applyStringConfig(cmd, "log-level", &playLogLevel, fileGame.LogLevel)
}

func validatePlayFlags() (playOptions, error) {
	mode, err := model.ParseMode(playMode)
	if err != nil {
		return playOptions{}, fmt.Errorf("--mode: %w", err)
	}
	if !model.ValidTimeLimit(playTimeLimit) {
		return playOptions{}, fmt.Errorf("--time must be one of %v", model.TimeLimits)
	}
	if playAbuse <= 0 {
		return playOptions{}, fmt.Errorf("--abuse-threshold must be > 0")
	}
	if playRefreshMs < minRefreshMs {
		return playOptions{}, fmt.Errorf("--refresh must be >= %d", minRefreshMs)
	}
	if strings.TrimSpace(playExportDir) == "" {
		return playOptions{}, fmt.Errorf("--export-dir must not be empty")
	}
	level, err := logging.ParseLevel(playLogLevel)
	if err != nil {
		return playOptions{}, fmt.Errorf("--log-level: %w", err)
	}
	return playOptions{
		game:      model.GameConfig{Mode: mode, TimeLimit: playTimeLimit},
		abuse:     playAbuse,
		refresh:   time.Duration(playRefreshMs) * time.Millisecond,
		exportDir: playExportDir,
		logLevel:  level,
	}, nil
}

func openLogger(level slog.Level) (*slog.Logger, func()) {
	logger, closer, err := logging.OpenFile(config.DefaultLogPath(), level)
	if err != nil {
		logErrf("logging disabled: %v\n", err)
		return logging.Discard(), func() {}
	}
	return logger, func() {
		if cerr := closer.Close(); cerr != nil {
			logErrf("failed to close log: %v\n", cerr)
		}
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export session history to CSV",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default: export-dir from config, else current directory)")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	dir := exportDir
	if dir == "" {
		fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		dir = defaultExportDir
		if fileCfg.Game.ExportDir != nil {
			dir = *fileCfg.Game.ExportDir
		}
	}
	recorder := history.NewRecorder(config.DefaultHistoryPath())
	recorder.Load()
	return exportHistory(cmd.OutOrStdout(), recorder, dir, time.Now())
}

func exportHistory(w io.Writer, recorder *history.Recorder, dir string, now time.Time) error {
	path, err := recorder.Export(dir, now)
	if errors.Is(err, history.ErrNoData) {
		_, werr := fmt.Fprintln(w, "No session data available for export.")
		return werr
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if _, err := fmt.Fprintf(w, "Data exported to: %s\n", path); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recorded sessions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyMode, "mode", "", "mode filter")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N sessions")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	var mode *model.Mode
	if historyMode != "" {
		parsed, err := model.ParseMode(historyMode)
		if err != nil {
			return fmt.Errorf("--mode: %w", err)
		}
		mode = &parsed
	}
	recorder := history.NewRecorder(config.DefaultHistoryPath())
	recorder.Load()
	sessions := filterSessions(recorder.Sessions(), mode, historyLast)
	return stats.RenderHistoryTable(cmd.OutOrStdout(), sessions)
}

func filterSessions(sessions []model.SessionSummary, mode *model.Mode, last int) []model.SessionSummary {
	out := make([]model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		if mode != nil && s.Mode != *mode {
			continue
		}
		out = append(out, s)
	}
	if last > 0 && len(out) > last {
		out = out[len(out)-last:]
	}
	return out
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsMode, "mode", "", "mode filter")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&statsSync, "sync", false, "import sessions from the JSON history first")
	return cmd
}

func runStatsCmd(_ *cobra.Command, _ []string) error {
	filter, err := statsFilter()
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if statsSync {
		recorder := history.NewRecorder(config.DefaultHistoryPath())
		recorder.Load()
		added, err := st.ImportSummaries(context.Background(), recorder.Sessions())
		if err != nil {
			return fmt.Errorf("failed to sync history: %w", err)
		}
		logErrf("Imported %d sessions from %s\n", added, recorder.Path())
	}

	model := statsui.NewModel(st, filter)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func statsFilter() (model.HistoryFilter, error) {
	filter := model.HistoryFilter{Last: statsLast, CurveWindow: statsCurveWindow}
	if statsLast < 0 {
		return filter, fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow < 1 {
		return filter, fmt.Errorf("--curve-window must be >= 1")
	}
	if statsMode != "" {
		mode, err := model.ParseMode(statsMode)
		if err != nil {
			return filter, fmt.Errorf("--mode: %w", err)
		}
		filter.Mode = &mode
	}
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return filter, fmt.Errorf("invalid --since value: %w", err)
		}
		filter.Since = &parsed
	}
	return filter, nil
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or update saved settings",
		Args:  cobra.NoArgs,
		RunE:  runSettingsCmd,
	}
	cmd.Flags().BoolVar(&settingsSound, "sound", true, "enable the click bell")
	cmd.Flags().BoolVar(&settingsAutoDetect, "auto-detect", true, "enable auto-clicker detection")
	cmd.Flags().StringVar(&settingsTheme, "theme", "dark", "color theme: dark or light")
	cmd.Flags().StringVar(&settingsButtonSize, "button-size", "large", "button size: large or small")
	return cmd
}

func runSettingsCmd(cmd *cobra.Command, _ []string) error {
	path := config.DefaultSettingsPath()
	settings, changed, err := updateSettings(cmd, config.LoadSettings(path))
	if err != nil {
		return err
	}
	if changed {
		if err := config.SaveSettings(path, settings); err != nil {
			return err
		}
	}
	return printSettings(cmd.OutOrStdout(), path, settings)
}

func updateSettings(cmd *cobra.Command, settings model.Settings) (model.Settings, bool, error) {
	changed := false
	if cmd.Flags().Changed("sound") {
		settings.SoundEnabled = settingsSound
		changed = true
	}
	if cmd.Flags().Changed("auto-detect") {
		settings.AutoDetect = settingsAutoDetect
		changed = true
	}
	if cmd.Flags().Changed("theme") {
		theme := strings.ToLower(strings.TrimSpace(settingsTheme))
		if theme != "dark" && theme != "light" {
			return settings, false, fmt.Errorf("--theme must be dark or light")
		}
		settings.Theme = theme
		changed = true
	}
	if cmd.Flags().Changed("button-size") {
		size := strings.ToLower(strings.TrimSpace(settingsButtonSize))
		if size != "large" && size != "small" {
			return settings, false, fmt.Errorf("--button-size must be large or small")
		}
		settings.ButtonSize = size
		changed = true
	}
	return settings, changed, nil
}

func printSettings(w io.Writer, path string, s model.Settings) error {
	lines := []string{
		fmt.Sprintf("Settings file: %s", path),
		fmt.Sprintf("sound_enabled = %t", s.SoundEnabled),
		fmt.Sprintf("auto_detect   = %t", s.AutoDetect),
		fmt.Sprintf("theme         = %s", s.Theme),
		fmt.Sprintf("button_size   = %s", s.ButtonSize),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# cpsclick configuration
# Uncomment a value to enable it. CLI flags override config values.

[game]
# mode = %q              # time, endless, or practice
# time-limit = %d              # Time trial limit in seconds (5, 10, 15, 30)
# abuse-threshold = %d         # CPS above which the auto-clicker warning fires
# refresh-ms = %d             # Display refresh interval in milliseconds
# export-dir = %q           # Directory for CSV exports
# log-level = %q          # DEBUG, INFO, WARN, ERROR
`,
		defaultMode,
		defaultTimeLimit,
		game.DefaultAbuseThreshold,
		defaultRefreshMs,
		defaultExportDir,
		logging.LevelInfo,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
