package control

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	stop    chan struct{}
	stopped atomic.Bool
	ignore  bool
}

func newBlockingRunner(ignore bool) *blockingRunner {
	return &blockingRunner{stop: make(chan struct{}), ignore: ignore}
}

func (r *blockingRunner) Run(ctx context.Context) error {
	if r.ignore {
		select {}
	}
	select {
	case <-r.stop:
	case <-ctx.Done():
	}
	return nil
}

func (r *blockingRunner) Stop() {
	if r.stopped.CompareAndSwap(false, true) {
		close(r.stop)
	}
}

type finishedRunner struct{}

func (finishedRunner) Run(context.Context) error { return nil }
func (finishedRunner) Stop()                     {}

func TestSuperviseStopsOnRequest(t *testing.T) {
	r := newBlockingRunner(false)
	flag := &Flag{}
	go func() {
		time.Sleep(50 * time.Millisecond)
		flag.Request()
	}()
	start := time.Now()
	err := Supervise(context.Background(), r, flag, Options{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, r.stopped.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestSuperviseStopsOnContext(t *testing.T) {
	r := newBlockingRunner(false)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, Supervise(ctx, r, nil, Options{}))
	assert.True(t, r.stopped.Load())
}

func TestSuperviseReturnsWhenRunnerFinishes(t *testing.T) {
	require.NoError(t, Supervise(context.Background(), finishedRunner{}, &Flag{}, Options{}))
}

func TestSuperviseJoinTimeout(t *testing.T) {
	flag := &Flag{}
	flag.Request()
	start := time.Now()
	err := Supervise(context.Background(), newBlockingRunner(true), flag, Options{
		PollInterval: 5 * time.Millisecond,
		JoinTimeout:  50 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrJoinTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAnyPoller(t *testing.T) {
	a, b := &Flag{}, &Flag{}
	p := Any(a, nil, b)
	assert.False(t, p.Requested())
	b.Request()
	assert.True(t, p.Requested())
}

func TestKeyPollerReadsStopKeys(t *testing.T) {
	p := &KeyPoller{}
	p.read(bytes.NewReader([]byte("abc\x1b")))
	assert.True(t, p.Requested())

	q := &KeyPoller{}
	q.read(bytes.NewReader([]byte("plain text")))
	assert.False(t, q.Requested())
	assert.False(t, q.Active())
	assert.NoError(t, q.Close())
}

func TestCRLF(t *testing.T) {
	var buf bytes.Buffer
	w := CRLF(&buf)
	n, err := w.Write([]byte("a\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "a\r\nb\r\n", buf.String())
}
