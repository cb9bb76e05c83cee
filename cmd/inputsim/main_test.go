package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/inputsim/internal/config"
	"github.com/verte-zerg/inputsim/internal/model"
	"github.com/verte-zerg/inputsim/internal/store"
)

func reader(values map[string]any) *config.Reader {
	return config.NewReader(config.FromMap(values), nil)
}

func TestResolveEventInterval(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		values   map[string]any
		min, max time.Duration
	}{
		{name: "defaults", min: time.Second, max: 5 * time.Second},
		{name: "configured", values: map[string]any{"event_interval_min": 0.5, "event_interval_max": 2.0}, min: 500 * time.Millisecond, max: 2 * time.Second},
		{name: "both args", args: []string{"0.2", "0.4"}, min: 200 * time.Millisecond, max: 400 * time.Millisecond},
		{name: "min only keeps configured max", args: []string{"2"}, min: 2 * time.Second, max: 5 * time.Second},
		{name: "min above configured max", args: []string{"8"}, min: 8 * time.Second, max: 8 * time.Second},
		{name: "unparseable falls back", args: []string{"fast"}, min: time.Second, max: 5 * time.Second},
		{name: "unparseable max falls back", args: []string{"1", "NaN"}, min: time.Second, max: 5 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lo, hi, err := resolveEventInterval(tc.args, reader(tc.values))
			require.NoError(t, err)
			assert.Equal(t, tc.min, lo)
			assert.Equal(t, tc.max, hi)
		})
	}
}

func TestResolveEventIntervalRejectsInconsistentArgs(t *testing.T) {
	_, _, err := resolveEventInterval([]string{"3", "1"}, reader(nil))
	assert.Error(t, err)
	_, _, err = resolveEventInterval([]string{"-1", "1"}, reader(nil))
	assert.Error(t, err)
}

func TestConfigTemplateLoadsCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644))
	params := config.Load(path, variantKeyboard)
	assert.Empty(t, params.Notes())
	assert.Equal(t, path, params.Source())
	assert.Empty(t, params.Keys())
}

func TestHistoryConfigValidation(t *testing.T) {
	defer func() {
		historyVariant, historySince, historyLast, historyWindow = "", "", 0, defaultTrendWindow
	}()

	historyVariant, historySince, historyLast, historyWindow = "Mouse", "2024-02-03", 4, 2
	cfg, err := historyConfig()
	require.NoError(t, err)
	assert.Equal(t, "mouse", cfg.Variant)
	assert.Equal(t, 4, cfg.Last)
	require.NotNil(t, cfg.Since)
	assert.Equal(t, 3, cfg.Since.Day())

	historyVariant = "pen"
	_, err = historyConfig()
	assert.Error(t, err)

	historyVariant, historySince = "", "yesterday"
	_, err = historyConfig()
	assert.Error(t, err)
}

func TestHistoryCommandPrintsReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	ended := time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.RecordSession(context.Background(), model.SessionRecord{
		ID:        "one",
		Variant:   variantMouse,
		StartedAt: ended.Add(-2 * time.Minute),
		EndedAt:   ended,
		Events:    240,
		Patterns:  []model.PatternCount{{Pattern: "linear", Runs: 6, Events: 240}},
	}))
	require.NoError(t, st.Close())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"history", "--db", path, "--variant", "mouse"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Sessions: 1")
	assert.Contains(t, out.String(), "Avg events/min: 120.00")
	assert.Contains(t, out.String(), "linear")
}
