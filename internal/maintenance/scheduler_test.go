package maintenance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/inputsim/internal/config"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewSchedulerValidates(t *testing.T) {
	_, err := NewScheduler(Intervals{Drain: time.Second, Refresh: 0, Sample: time.Second}, base)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh")
}

func TestLoadIntervals(t *testing.T) {
	r := config.NewReader(config.FromMap(map[string]any{
		"message_process_interval":  2,
		"cleanup_interval":          -1,
		"resource_monitor_interval": 0.5,
	}), nil)
	iv := LoadIntervals(r)
	assert.Equal(t, 2*time.Second, iv.Drain)
	assert.Equal(t, 600*time.Second, iv.Refresh)
	assert.Equal(t, 500*time.Millisecond, iv.Sample)
}

func TestTimersAreIndependent(t *testing.T) {
	s, err := NewScheduler(Intervals{Drain: 5 * time.Second, Refresh: 10 * time.Second, Sample: 7 * time.Second}, base)
	require.NoError(t, err)

	now := base.Add(11 * time.Second)
	for _, a := range Actions {
		assert.True(t, s.Due(a, now), "%s should be due", a)
	}

	fired, err := s.Run(Refresh, now, func() error { return nil })
	require.NoError(t, err)
	assert.True(t, fired)

	assert.False(t, s.Due(Refresh, now))
	assert.True(t, s.Due(Drain, now))
	assert.True(t, s.Due(Sample, now))
	assert.Equal(t, base, s.Timer(Drain).Last)
	assert.Equal(t, base, s.Timer(Sample).Last)
	assert.Equal(t, now, s.Timer(Refresh).Last)
}

func TestRunNotDue(t *testing.T) {
	s, err := NewScheduler(DefaultIntervals(), base)
	require.NoError(t, err)
	called := false
	fired, err := s.Run(Drain, base.Add(time.Second), func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, fired)
	assert.False(t, called)
}

func TestRunFailureKeepsTimerDue(t *testing.T) {
	s, err := NewScheduler(DefaultIntervals(), base)
	require.NoError(t, err)
	now := base.Add(31 * time.Second)
	boom := errors.New("boom")

	fired, err := s.Run(Sample, now, func() error { return boom })
	assert.True(t, fired)
	assert.ErrorIs(t, err, boom)
	assert.True(t, s.Due(Sample, now))

	later := now.Add(time.Second)
	fired, err = s.Run(Sample, later, func() error { return nil })
	require.NoError(t, err)
	assert.True(t, fired)
	assert.False(t, s.Due(Sample, later))
}

func TestResetAll(t *testing.T) {
	s, err := NewScheduler(DefaultIntervals(), base)
	require.NoError(t, err)
	now := base.Add(time.Hour)
	s.ResetAll(now)
	for _, a := range Actions {
		assert.False(t, s.Due(a, now))
		assert.Equal(t, now, s.Timer(a).Last)
	}
	assert.Equal(t, "drain", Drain.String())
	assert.Equal(t, "action(9)", Action(9).String())
}
