package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/inputsim/internal/model"
	"github.com/verte-zerg/inputsim/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "inputsim.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	ids := []string{"s1", "s2", "s3"}
	for i, id := range ids {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Hour)
		rec := model.SessionRecord{
			ID:        id,
			Variant:   "keyboard",
			StartedAt: start,
			EndedAt:   start.Add(time.Minute),
			Events:    int64(60 * (i + 1)),
			Failures:  int64(i),
			Patterns: []model.PatternCount{
				{Pattern: "common_word", Runs: 2, Events: 40 * (i + 1)},
				{Pattern: "number_sequence", Runs: 1, Events: 20 * (i + 1), Failures: min(i, 1)},
			},
		}
		if err := st.RecordSession(ctx, rec); err != nil {
			t.Fatalf("record session: %v", err)
		}
	}

	report, err := BuildReport(ctx, st, model.HistoryConfig{Variant: "keyboard", Last: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(report.Sessions))
	}
	if report.Sessions[0].ID != "s2" || report.Sessions[1].ID != "s3" {
		t.Fatalf("unexpected sessions: %+v", report.Sessions)
	}
	if len(report.Patterns) != 2 {
		t.Fatalf("expected 2 pattern aggregates, got %d", len(report.Patterns))
	}

	var buf bytes.Buffer
	if err := Render(&buf, report, RenderOptions{Window: 1, Width: 120, Sessions: true}); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Sessions: 2", "Events: 300", "Avg events/min: 150.00", "Trends", "common word", "Busiest: common word, number sequence", "Most failing: number sequence (2/2)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Report{}, RenderOptions{Width: 80}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "No sessions found.\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestSessionMetrics(t *testing.T) {
	rate, failures := SessionMetrics(90, 10, 30*time.Second)
	if rate != 180 {
		t.Fatalf("expected 180 events/min, got %f", rate)
	}
	if failures != 0.1 {
		t.Fatalf("expected failure ratio 0.1, got %f", failures)
	}
	rate, failures = SessionMetrics(0, 0, 0)
	if rate != 0 || failures != 0 {
		t.Fatalf("expected zero metrics, got %f %f", rate, failures)
	}
}

func TestSparklineAndMovingAverage(t *testing.T) {
	if got := Sparkline([]float64{0, 5, 10}); got != " +@" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{3, 3}); got != "++" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
	avg := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if avg[i] != want[i] {
			t.Fatalf("moving average %v, want %v", avg, want)
		}
	}
}
