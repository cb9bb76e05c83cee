package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/inputsim/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func record(id, variant string, ended time.Time, patterns ...model.PatternCount) model.SessionRecord {
	events := 0
	for _, p := range patterns {
		events += p.Events
	}
	return model.SessionRecord{
		ID:           id,
		Variant:      variant,
		StartedAt:    ended.Add(-time.Minute),
		EndedAt:      ended,
		Events:       int64(events),
		Recoveries:   1,
		FinalUsage:   model.Usage{CPUPercent: 1.5, MemoryBytes: 1 << 20},
		ConfigSource: "config.toml",
		Patterns:     patterns,
	}
}

func TestRecordAndListSessions(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordSession(ctx, record("a", "keyboard", base,
		model.PatternCount{Pattern: "common_word", Runs: 2, Events: 20})))
	require.NoError(t, st.RecordSession(ctx, record("b", "mouse", base.Add(time.Hour),
		model.PatternCount{Pattern: "linear", Runs: 1, Events: 50, Failures: 1})))
	require.NoError(t, st.RecordSession(ctx, record("c", "keyboard", base.Add(2*time.Hour),
		model.PatternCount{Pattern: "common_word", Runs: 1, Events: 8},
		model.PatternCount{Pattern: "sentence", Runs: 1, Events: 30})))

	all, err := st.ListSessions(ctx, model.HistoryConfig{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.EqualValues(t, 38, all[2].Events)
	assert.Equal(t, 1, all[2].Recoveries)
	assert.True(t, all[0].EndedAt.Equal(base))

	kb, err := st.ListSessions(ctx, model.HistoryConfig{Variant: "keyboard"})
	require.NoError(t, err)
	assert.Len(t, kb, 2)

	since := base.Add(30 * time.Minute)
	recent, err := st.ListSessions(ctx, model.HistoryConfig{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	last, err := st.ListSessions(ctx, model.HistoryConfig{Last: 1})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "c", last[0].ID)

	aggs, err := st.ListPatternAggregates(ctx, []string{"a", "c"})
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, model.PatternAggregate{Pattern: "common_word", Runs: 3, Events: 28}, aggs[0])
	assert.Equal(t, "sentence", aggs[1].Pattern)
}

func TestRecordSessionRejectsDuplicates(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	rec := record("dup", "mouse", time.Now(), model.PatternCount{Pattern: "click", Runs: 1, Events: 4})
	require.NoError(t, st.RecordSession(ctx, rec))
	assert.Error(t, st.RecordSession(ctx, rec))
	assert.Error(t, st.RecordSession(ctx, model.SessionRecord{}))

	aggs, err := st.ListPatternAggregates(ctx, []string{"dup"})
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, 1, aggs[0].Runs)
}

func TestListPatternAggregatesEmpty(t *testing.T) {
	st := openTemp(t)
	aggs, err := st.ListPatternAggregates(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, aggs)
}
