// Package stats contains session history calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/verte-zerg/inputsim/internal/model"
)

const sparkChars = " .:-=+*#%@"

// SessionMetrics computes the event rate per minute and the failure ratio of a session.
func SessionMetrics(events, failures int64, duration time.Duration) (perMinute, failureRate float64) {
	if attempts := events + failures; attempts > 0 {
		failureRate = float64(failures) / float64(attempts)
	}
	minutes := duration.Minutes()
	if minutes <= 0 {
		return 0, failureRate
	}
	return float64(events) / minutes, failureRate
}

func sessionMetrics(s model.SessionAggregate) (float64, float64) {
	return SessionMetrics(s.Events, s.Failures, s.EndedAt.Sub(s.StartedAt))
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		den := float64(i + 1)
		if i >= window {
			sum -= values[i-window]
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
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
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

// RenderSummary prints totals over sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	var events, failures int64
	var recoveries, refreshes int
	var runtime time.Duration
	var totalRate, bestRate float64
	for _, s := range sessions {
		events += s.Events
		failures += s.Failures
		recoveries += s.Recoveries
		refreshes += s.Refreshes
		runtime += s.EndedAt.Sub(s.StartedAt)
		rate, _ := sessionMetrics(s)
		totalRate += rate
		bestRate = math.Max(bestRate, rate)
	}
	_, failureRate := SessionMetrics(events, failures, runtime)
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d", len(sessions)),
		fmt.Sprintf("Runtime: %s", runtime.Round(time.Second)),
		fmt.Sprintf("Events: %d", events),
		fmt.Sprintf("Failures: %d (%.2f%%)", failures, failureRate*100),
		fmt.Sprintf("Avg events/min: %.2f", totalRate/float64(len(sessions))),
		fmt.Sprintf("Best events/min: %.2f", bestRate),
		fmt.Sprintf("Recoveries: %d", recoveries),
		fmt.Sprintf("Refreshes: %d", refreshes),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderTrends prints smoothed sparklines of the event rate and failure ratio.
// Only the newest width sessions are drawn when width is positive.
func RenderTrends(w io.Writer, sessions []model.SessionAggregate, window, width int) error {
	if len(sessions) < 2 {
		return nil
	}
	rates := make([]float64, len(sessions))
	fails := make([]float64, len(sessions))
	for i, s := range sessions {
		rates[i], fails[i] = sessionMetrics(s)
	}
	rates = MovingAverage(rates, window)
	fails = MovingAverage(fails, window)
	if width > 0 && len(rates) > width {
		rates = rates[len(rates)-width:]
		fails = fails[len(fails)-width:]
	}
	headers := []string{"Trend", "Oldest", "Newest", ""}
	rows := [][]string{
		{"Events/min", fmt.Sprintf("%.1f", rates[0]), fmt.Sprintf("%.1f", rates[len(rates)-1]), Sparkline(rates)},
		{"Failures", fmt.Sprintf("%.2f%%", fails[0]*100), fmt.Sprintf("%.2f%%", fails[len(fails)-1]*100), Sparkline(fails)},
	}
	return writeTable(w, "Trends", headers, rows, map[int]bool{1: true, 2: true})
}

// RenderSessionTable prints one row per session.
func RenderSessionTable(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		return nil
	}
	headers := []string{"Ended", "Variant", "Duration", "Events", "Events/min", "Failures", "Recoveries", "Refreshes"}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rate, _ := sessionMetrics(s)
		rows = append(rows, []string{
			s.EndedAt.Local().Format("2006-01-02 15:04"),
			s.Variant,
			s.EndedAt.Sub(s.StartedAt).Round(time.Second).String(),
			fmt.Sprintf("%d", s.Events),
			fmt.Sprintf("%.1f", rate),
			fmt.Sprintf("%d", s.Failures),
			fmt.Sprintf("%d", s.Recoveries),
			fmt.Sprintf("%d", s.Refreshes),
		})
	}
	rightAlign := map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true, 7: true}
	return writeTable(w, "Sessions", headers, rows, rightAlign)
}

// RenderPatternTable prints per-pattern aggregates, busiest first.
func RenderPatternTable(w io.Writer, aggs []model.PatternAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No pattern stats found.")
		return err
	}
	sorted := make([]model.PatternAggregate, len(aggs))
	copy(sorted, aggs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Events == sorted[j].Events {
			return sorted[i].Pattern < sorted[j].Pattern
		}
		return sorted[i].Events > sorted[j].Events
	})

	headers := []string{"Pattern", "Runs", "Events", "Events/run", "Failed runs"}
	rows := make([][]string, 0, len(sorted))
	for _, agg := range sorted {
		perRun := 0.0
		if agg.Runs > 0 {
			perRun = float64(agg.Events) / float64(agg.Runs)
		}
		rows = append(rows, []string{
			strings.ReplaceAll(agg.Pattern, "_", " "),
			fmt.Sprintf("%d", agg.Runs),
			fmt.Sprintf("%d", agg.Events),
			fmt.Sprintf("%.1f", perRun),
			fmt.Sprintf("%d", agg.Failures),
		})
	}
	return writeTable(w, "Per-Pattern", headers, rows, map[int]bool{1: true, 2: true, 3: true, 4: true})
}

func writeTable(w io.Writer, title string, headers []string, rows [][]string, rightAlign map[int]bool) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	for _, line := range (textTable{headers: headers, rows: rows, right: rightAlign}).lines() {
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
