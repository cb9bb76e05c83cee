package stats

import (
	"sort"

	"github.com/verte-zerg/inputsim/internal/model"
)

// FailingPatterns returns up to top patterns with at least one failed run,
// highest failure ratio first. A non-positive top returns all of them.
func FailingPatterns(aggs []model.PatternAggregate, top int) []model.PatternAggregate {
	var candidates []model.PatternAggregate
	for _, agg := range aggs {
		if agg.Failures > 0 {
			candidates = append(candidates, agg)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := failureRatio(candidates[i]), failureRatio(candidates[j])
		if ri == rj {
			return candidates[i].Pattern < candidates[j].Pattern
		}
		return ri > rj
	})
	if top > 0 && top < len(candidates) {
		candidates = candidates[:top]
	}
	return candidates
}

func failureRatio(agg model.PatternAggregate) float64 {
	if agg.Runs == 0 {
		return 0
	}
	return float64(agg.Failures) / float64(agg.Runs)
}
