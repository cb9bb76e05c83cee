package stats

import (
	"testing"

	"github.com/verte-zerg/inputsim/internal/model"
)

func TestTopPatterns(t *testing.T) {
	aggs := []model.PatternAggregate{
		{Pattern: "linear", Runs: 3, Events: 30},
		{Pattern: "click", Runs: 9, Events: 36},
		{Pattern: "circular", Runs: 1, Events: 36},
	}
	top := TopPatterns(aggs, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(top))
	}
	if top[0] != "circular" || top[1] != "click" {
		t.Fatalf("unexpected order: %v", top)
	}
}

func TestFailingPatterns(t *testing.T) {
	aggs := []model.PatternAggregate{
		{Pattern: "scroll", Runs: 4, Failures: 1},
		{Pattern: "click", Runs: 2, Failures: 2},
		{Pattern: "linear", Runs: 5},
	}
	failing := FailingPatterns(aggs, 0)
	if len(failing) != 2 {
		t.Fatalf("expected 2 failing patterns, got %d", len(failing))
	}
	if failing[0].Pattern != "click" || failing[1].Pattern != "scroll" {
		t.Fatalf("unexpected order: %v", failing)
	}
	if got := FailingPatterns(aggs, 1); len(got) != 1 {
		t.Fatalf("expected top 1, got %d", len(got))
	}
}
