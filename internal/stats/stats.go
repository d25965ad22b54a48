// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/verte-zerg/cpsclick/internal/model"
)

const (
	sparkChars = " .:-=+*#%@"

	// The live chart never shrinks below 10 seconds by 25 CPS.
	minChartSeconds = 10
	minChartRate    = 25
	chartHeadroom   = 5
)

// SessionMetrics aggregates a list of archived sessions.
type SessionMetrics struct {
	Count        int
	AvgFinalRate float64
	BestMaxRate  float64
	TotalClicks  int
	TotalTime    time.Duration
}

// Metrics summarizes sessions.
func Metrics(sessions []model.SessionAggregate) SessionMetrics {
	var m SessionMetrics
	if len(sessions) == 0 {
		return m
	}
	var sumFinal float64
	for _, s := range sessions {
		sumFinal += s.FinalRate
		m.BestMaxRate = math.Max(m.BestMaxRate, s.MaxRate)
		m.TotalClicks += s.TotalClicks
		m.TotalTime += time.Duration(s.TotalTimeMs) * time.Millisecond
	}
	m.Count = len(sessions)
	m.AvgFinalRate = sumFinal / float64(len(sessions))
	return m
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 || len(values) == 0 {
		copy(out, values)
		return out
	}
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := minMax(values)
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RateTrace lays samples out over width columns spanning the chart's time
// axis. Each column holds the most recent rate at or before its time, zero
// before the first sample.
func RateTrace(samples []model.RateSample, width int) []float64 {
	if width <= 0 || len(samples) == 0 {
		return nil
	}
	span := ChartSeconds(samples)
	out := make([]float64, width)
	idx := -1
	for col := 0; col < width; col++ {
		at := time.Duration(float64(col) * span / float64(max(width-1, 1)) * float64(time.Second))
		for idx+1 < len(samples) && samples[idx+1].Elapsed <= at {
			idx++
		}
		if idx >= 0 {
			out[col] = float64(samples[idx].Rate)
		}
	}
	return out
}

// ChartSeconds is the time axis span: at least 10s, else one second past
// the last sample.
func ChartSeconds(samples []model.RateSample) float64 {
	span := float64(minChartSeconds)
	if len(samples) > 0 {
		span = math.Max(span, samples[len(samples)-1].Elapsed.Seconds()+1)
	}
	return span
}

// ChartRateMax is the rate axis top: at least 25, else 5 above the peak.
func ChartRateMax(samples []model.RateSample) float64 {
	peak := 0
	for _, s := range samples {
		peak = max(peak, s.Rate)
	}
	return math.Max(minChartRate, float64(peak+chartHeadroom))
}

// RenderRateChart draws the clicks-per-second trace of one game. Fewer than
// two samples render an empty axis.
func RenderRateChart(w io.Writer, samples []model.RateSample, totalWidth, height int, useColor bool) error {
	width := PlotWidthFor(totalWidth)
	values := make([]float64, width)
	if len(samples) >= 2 {
		values = RateTrace(samples, width)
	}
	if err := Plot(w, "", []Series{{Name: "CPS", Values: values}}, PlotOptions{
		Width:  width,
		Height: height,
		Color:  useColor,
		Shared: true,
		YMax:   ChartRateMax(samples),
	}); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, timeAxis(width, ChartSeconds(samples)))
	return err
}

func timeAxis(width int, seconds float64) string {
	indent := strings.Repeat(" ", axisLabelWidth+utf8.RuneCountInString(axisSeparator))
	end := fmt.Sprintf("%.0fs", seconds)
	gap := max(width-2-len(end), 1)
	return indent + "0s" + strings.Repeat(" ", gap) + end
}

// RenderSummary prints a summary block for sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	m := Metrics(sessions)
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", m.Count),
		fmt.Sprintf("Avg Final CPS: %.2f", m.AvgFinalRate),
		fmt.Sprintf("Best Max CPS: %.0f", m.BestMaxRate),
		fmt.Sprintf("Total Clicks: %d", m.TotalClicks),
		fmt.Sprintf("Total Time: %.1fs", m.TotalTime.Seconds()),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderHistoryTable prints one row per session, oldest first.
func RenderHistoryTable(w io.Writer, sessions []model.SessionSummary) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No session data available.")
		return err
	}
	headers := []string{"Time", "Mode", "Limit", "Clicks", "Duration", "Final CPS", "Max CPS"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.Timestamp.Local().Format("2006-01-02 15:04:05"),
			s.Mode.String(),
			fmt.Sprintf("%ds", s.TimeLimit),
			fmt.Sprintf("%d", s.TotalClicks),
			fmt.Sprintf("%.2fs", s.TotalTime),
			fmt.Sprintf("%.2f", s.FinalRate),
			fmt.Sprintf("%.0f", s.MaxRate),
		})
	}
	rightAlign := map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurves prints the final and max CPS curves across sessions.
func RenderCurves(w io.Writer, sessions []model.SessionAggregate, window int) error {
	return RenderCurvesWithSize(w, sessions, window, 0, 10, false)
}

// RenderCurvesWithSize prints the curves sized to a given total width.
func RenderCurvesWithSize(w io.Writer, sessions []model.SessionAggregate, window, totalWidth, height int, useColor bool) error {
	if len(sessions) == 0 {
		return nil
	}
	finals := make([]float64, len(sessions))
	maxes := make([]float64, len(sessions))
	for i, s := range sessions {
		finals[i] = s.FinalRate
		maxes[i] = s.MaxRate
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return Plot(w, "Progress", []Series{
		{Name: "Final CPS", Values: MovingAverage(finals, window)},
		{Name: "Max CPS", Values: MovingAverage(maxes, window)},
	}, PlotOptions{Width: width, Height: height, Color: useColor, Shared: true, Legend: true})
}
