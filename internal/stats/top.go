package stats

import (
	"sort"

	"github.com/verte-zerg/inputsim/internal/model"
)

// TopPatterns returns the N patterns that produced the most events.
func TopPatterns(aggs []model.PatternAggregate, n int) []string {
	if n <= 0 || len(aggs) == 0 {
		return nil
	}
	items := make([]model.PatternAggregate, len(aggs))
	copy(items, aggs)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Events == items[j].Events {
			return items[i].Pattern < items[j].Pattern
		}
		return items[i].Events > items[j].Events
	})
	n = min(n, len(items))
	out := make([]string, 0, n)
	for _, item := range items[:n] {
		out = append(out, item.Pattern)
	}
	return out
}
