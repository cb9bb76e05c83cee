package dispatch

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/inputsim/internal/model"
	"github.com/verte-zerg/inputsim/internal/surface"
)

func TestDispatchCountsSuccessOnly(t *testing.T) {
	var buf bytes.Buffer
	sandbox := surface.NewSandbox(surface.SandboxOptions{QueueCapacity: 2})
	h, err := sandbox.Create(context.Background(), surface.Options{Bounds: model.Bounds{Width: 10, Height: 10}})
	require.NoError(t, err)

	d := New(sandbox, slog.New(slog.NewTextHandler(&buf, nil)))
	assert.True(t, d.Dispatch(h, model.NewCharInput('a')))
	assert.True(t, d.Dispatch(h, model.NewCharInput('b')))
	assert.False(t, d.Dispatch(h, model.NewCharInput('c')))
	assert.False(t, d.Dispatch(h, model.NewPointerMove(model.Point{X: 10, Y: 0})))

	assert.EqualValues(t, 2, d.Count())
	assert.EqualValues(t, 2, d.Failures())
	assert.Contains(t, buf.String(), "event dispatch failed")

	view, ok := sandbox.View(h)
	require.True(t, ok)
	assert.Equal(t, 2, view.Pending)

	d.Reset()
	assert.Zero(t, d.Count())
	assert.Zero(t, d.Failures())
}

func TestDispatchToClosedHandle(t *testing.T) {
	sandbox := surface.NewSandbox(surface.SandboxOptions{})
	d := New(sandbox, nil)
	assert.False(t, d.Dispatch("missing", model.NewWheelDelta(120)))
	assert.Zero(t, d.Count())
}
