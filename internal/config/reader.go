package config

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// Reader resolves typed values from Params, logging a warning and falling
// back to the default whenever a value is missing or malformed.
type Reader struct {
	params *Params
	logger *slog.Logger
}

// NewReader wraps params. A nil logger discards warnings.
func NewReader(params *Params, logger *slog.Logger) *Reader {
	if params == nil {
		params = FromMap(nil)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reader{params: params, logger: logger}
}

// Logger returns the logger receiving configuration warnings.
func (r *Reader) Logger() *slog.Logger {
	return r.logger
}

// Params returns the underlying parameters.
func (r *Reader) Params() *Params {
	return r.params
}

func (r *Reader) warn(key string, value any, reason string, def any) {
	r.logger.Warn("invalid configuration value, using default",
		"key", key, "value", fmt.Sprint(value), "reason", reason, "default", fmt.Sprint(def))
}

// Float returns a numeric value.
func (r *Reader) Float(key string, def float64) float64 {
	raw, ok := r.params.Lookup(key)
	if !ok {
		return def
	}
	v, ok := toFloat(raw)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		r.warn(key, raw, "not a number", def)
		return def
	}
	return v
}

// Int returns an integer value. Fractional numbers are rejected.
func (r *Reader) Int(key string, def int) int {
	raw, ok := r.params.Lookup(key)
	if !ok {
		return def
	}
	v, ok := toFloat(raw)
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		r.warn(key, raw, "not an integer", def)
		return def
	}
	return int(v)
}

// Bool returns a boolean value.
func (r *Reader) Bool(key string, def bool) bool {
	raw, ok := r.params.Lookup(key)
	if !ok {
		return def
	}
	v, ok := raw.(bool)
	if !ok {
		r.warn(key, raw, "not a boolean", def)
		return def
	}
	return v
}

// String returns a non-empty string value.
func (r *Reader) String(key, def string) string {
	raw, ok := r.params.Lookup(key)
	if !ok {
		return def
	}
	v, ok := raw.(string)
	if !ok || strings.TrimSpace(v) == "" {
		r.warn(key, raw, "not a non-empty string", def)
		return def
	}
	return v
}

// Probability returns a value in [0,1].
func (r *Reader) Probability(key string, def float64) float64 {
	def = NormalizeProbability(def, 0)
	v := r.Float(key, def)
	normalized := NormalizeProbability(v, def)
	if normalized != v {
		r.warn(key, v, "probability must be between 0 and 1", def)
	}
	return normalized
}

// NormalizeProbability returns p when it lies in [0,1], otherwise def
// (itself forced into [0,1]).
func NormalizeProbability(p, def float64) float64 {
	if p >= 0 && p <= 1 {
		return p
	}
	if def >= 0 && def <= 1 {
		return def
	}
	return 0
}

// Seconds returns a positive duration expressed in seconds.
func (r *Reader) Seconds(key string, def time.Duration) time.Duration {
	secs := r.Float(key, def.Seconds())
	if secs <= 0 {
		r.warn(key, secs, "must be positive", def)
		return def
	}
	return time.Duration(secs * float64(time.Second))
}

// FloatRange returns a validated [min,max] pair with min >= floor. When only
// the max is configured, the default min is lowered to it.
func (r *Reader) FloatRange(minKey, maxKey string, defMin, defMax, floor float64) (float64, float64) {
	lo := r.Float(minKey, defMin)
	hi := r.Float(maxKey, defMax)
	if hi <= floor {
		r.warn(maxKey, hi, fmt.Sprintf("must be greater than %v", floor), defMax)
		hi = defMax
	}
	if _, set := r.params.Lookup(minKey); !set && lo > hi {
		lo = hi
	}
	if lo < floor || lo > hi {
		r.warn(minKey, lo, "must be within range and not exceed "+maxKey, defMin)
		lo = defMin
	}
	if lo > hi {
		r.warn(maxKey, hi, "must not be below "+minKey, defMax)
		lo, hi = defMin, defMax
	}
	return lo, hi
}

// IntRange returns a validated [min,max] pair with min >= floor.
func (r *Reader) IntRange(minKey, maxKey string, defMin, defMax, floor int) (int, int) {
	lo := r.Int(minKey, defMin)
	hi := r.Int(maxKey, defMax)
	if hi < floor {
		r.warn(maxKey, hi, fmt.Sprintf("must be at least %d", floor), defMax)
		hi = defMax
	}
	if _, set := r.params.Lookup(minKey); !set && lo > hi {
		lo = hi
	}
	if lo < floor || lo > hi {
		r.warn(minKey, lo, "must be within range and not exceed "+maxKey, defMin)
		lo = defMin
	}
	if lo > hi {
		r.warn(maxKey, hi, "must not be below "+minKey, defMax)
		lo, hi = defMin, defMax
	}
	return lo, hi
}

// Strings returns a list of strings, dropping malformed entries.
func (r *Reader) Strings(key string, def []string) []string {
	raw, ok := r.params.Lookup(key)
	if !ok {
		return def
	}
	items, ok := raw.([]any)
	if !ok {
		if typed, isTyped := raw.([]string); isTyped {
			return append([]string(nil), typed...)
		}
		r.warn(key, raw, "not a list", def)
		return def
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			r.warn(key, item, "list entry is not a string", "skipped")
			continue
		}
		out = append(out, s)
	}
	return out
}

// Floats returns a list of numbers. Malformed entries become 0.
func (r *Reader) Floats(key string, def []float64) []float64 {
	raw, ok := r.params.Lookup(key)
	if !ok {
		return def
	}
	items, ok := raw.([]any)
	if !ok {
		if typed, isTyped := raw.([]float64); isTyped {
			return append([]float64(nil), typed...)
		}
		r.warn(key, raw, "not a list", def)
		return def
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		v, ok := toFloat(item)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			r.warn(key, item, "list entry is not a number", 0)
			v = 0
		}
		out = append(out, v)
	}
	return out
}

// Tables returns a list of key/value tables (TOML arrays of tables or JSON
// arrays of objects). Non-table entries are skipped.
func (r *Reader) Tables(key string) ([]map[string]any, bool) {
	raw, ok := r.params.Lookup(key)
	if !ok {
		return nil, false
	}
	switch items := raw.(type) {
	case []map[string]any:
		return items, true
	case []any:
		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			table, ok := item.(map[string]any)
			if !ok {
				r.warn(key, item, "list entry is not a table", "skipped")
				continue
			}
			out = append(out, table)
		}
		return out, true
	default:
		r.warn(key, raw, "not a list of tables", "none")
		return nil, false
	}
}

// NumberField reads a numeric field of a table returned by Tables.
func NumberField(table map[string]any, key string) (float64, bool) {
	raw, ok := table[key]
	if !ok {
		return 0, false
	}
	v, ok := toFloat(raw)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
