// Package pattern turns configured behaviour into timed primitive input events.
//
// Generators are pure: given settings, a random source and the current cursor
// they return a Sequence without touching any surface. Delivery and pacing
// belong to the engine.
package pattern

import (
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/verte-zerg/inputsim/internal/model"
)

// Pattern names one generator variant.
type Pattern string

// Keyboard patterns.
const (
	CommonWord     Pattern = "common_word"
	RandomWord     Pattern = "random_word"
	Sentence       Pattern = "sentence"
	CodeSnippet    Pattern = "code_snippet"
	NumberSequence Pattern = "number_sequence"
	SpecialKey     Pattern = "special_key"
)

// Mouse patterns. Click and Scroll are actions chosen ahead of the weighted
// movement patterns.
const (
	Random   Pattern = "random"
	Linear   Pattern = "linear"
	Circular Pattern = "circular"
	Targeted Pattern = "targeted"
	Click    Pattern = "click"
	Scroll   Pattern = "scroll"
)

// Descriptor is a pattern plus its selection weight.
type Descriptor struct {
	Pattern Pattern
	Weight  float64
}

// Sequence is the output of one generator run.
type Sequence struct {
	Pattern Pattern
	Events  []model.TimedEvent
	Summary string
}

// Duration is the total of all delays in the sequence.
func (s Sequence) Duration() time.Duration {
	var total time.Duration
	for _, ev := range s.Events {
		total += ev.Delay
	}
	return total
}

// Describe pairs patterns with weights: missing weights are padded with 1.0,
// extra weights dropped and negatives coerced to 0. When every weight is zero
// the selection falls back to uniform and a warning is logged.
func Describe(patterns []Pattern, weights []float64, logger *slog.Logger) []Descriptor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(weights) != len(patterns) {
		logger.Warn("pattern weight count mismatch, padding with 1.0",
			"patterns", len(patterns), "weights", len(weights))
	}
	out := make([]Descriptor, len(patterns))
	total := 0.0
	for i, p := range patterns {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		if w < 0 {
			logger.Warn("negative pattern weight coerced to zero", "pattern", string(p), "weight", w)
			w = 0
		}
		out[i] = Descriptor{Pattern: p, Weight: w}
		total += w
	}
	if total <= 0 && len(out) > 0 {
		logger.Warn("all pattern weights are zero, selecting uniformly")
		for i := range out {
			out[i].Weight = 1
		}
	}
	return out
}

// Choose draws a pattern with probability proportional to its weight.
func Choose(rng *rand.Rand, descriptors []Descriptor) Pattern {
	if len(descriptors) == 0 {
		return ""
	}
	total := 0.0
	for _, d := range descriptors {
		total += d.Weight
	}
	if total <= 0 {
		return descriptors[rng.Intn(len(descriptors))].Pattern
	}
	r := rng.Float64() * total
	acc := 0.0
	for _, d := range descriptors {
		if d.Weight <= 0 {
			continue
		}
		acc += d.Weight
		if r < acc {
			return d.Pattern
		}
	}
	for i := len(descriptors) - 1; i >= 0; i-- {
		if descriptors[i].Weight > 0 {
			return descriptors[i].Pattern
		}
	}
	return descriptors[len(descriptors)-1].Pattern
}

// parsePatterns keeps the names accepted by known, warning about the rest.
func parsePatterns(names []string, known []Pattern, logger *slog.Logger) []Pattern {
	out := make([]Pattern, 0, len(names))
	for _, name := range names {
		p := Pattern(strings.ToLower(strings.TrimSpace(name)))
		if !contains(known, p) {
			logger.Warn("unknown pattern ignored", "pattern", name)
			continue
		}
		out = append(out, p)
	}
	return out
}

func contains(list []Pattern, p Pattern) bool {
	for _, item := range list {
		if item == p {
			return true
		}
	}
	return false
}

// uniformDuration returns a duration drawn uniformly from [lo, hi].
func uniformDuration(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int63n(int64(hi-lo)+1))
}

// intBetween returns an integer drawn uniformly from [lo, hi].
func intBetween(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

func floatBetween(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

// builder accumulates events, folding pending waits into the next event's delay.
type builder struct {
	events  []model.TimedEvent
	pending time.Duration
}

func (b *builder) wait(d time.Duration) {
	if d > 0 {
		b.pending += d
	}
}

func (b *builder) emit(ev model.Event) {
	b.events = append(b.events, model.TimedEvent{Event: ev, Delay: b.pending})
	b.pending = 0
}
