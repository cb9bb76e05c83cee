// Package control hosts the engine goroutine and turns operator input into
// cancellation.
package control

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/term"
)

const (
	keyEscape = 0x1b
	keyCtrlC  = 0x03
)

// Poller reports whether cancellation has been requested. Requested must not block.
type Poller interface {
	Requested() bool
}

// Flag is a Poller set explicitly.
type Flag struct {
	set atomic.Bool
}

// Request raises the flag.
func (f *Flag) Request() {
	f.set.Store(true)
}

// Requested implements Poller.
func (f *Flag) Requested() bool {
	return f.set.Load()
}

type anyPoller []Poller

func (a anyPoller) Requested() bool {
	for _, p := range a {
		if p != nil && p.Requested() {
			return true
		}
	}
	return false
}

// Any combines pollers; cancellation is requested when any of them requests it.
func Any(pollers ...Poller) Poller {
	return anyPoller(pollers)
}

// WatchSignals raises a flag on SIGINT or SIGTERM until ctx ends or stop is called.
func WatchSignals(ctx context.Context) (*Flag, func()) {
	flag := &Flag{}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
		})
	}
	go func() {
		select {
		case <-sigChan:
			flag.Request()
		case <-ctx.Done():
		case <-done:
		}
	}()
	return flag, stop
}

// KeyPoller watches a terminal for Esc or Ctrl-C in raw mode.
type KeyPoller struct {
	Flag
	fd    int
	state *term.State
}

// WatchKeys puts in into raw mode and raises the flag on Esc or Ctrl-C. When
// in is not a terminal the poller never fires.
func WatchKeys(in *os.File) (*KeyPoller, error) {
	p := &KeyPoller{fd: int(in.Fd())}
	if !term.IsTerminal(p.fd) {
		return p, nil
	}
	state, err := term.MakeRaw(p.fd)
	if err != nil {
		return nil, err
	}
	p.state = state
	go p.read(in)
	return p, nil
}

func (p *KeyPoller) read(r io.Reader) {
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		if n > 0 && containsStopKey(buf[:n]) {
			p.Request()
			return
		}
		if err != nil {
			return
		}
	}
}

func containsStopKey(b []byte) bool {
	return bytes.IndexByte(b, keyEscape) >= 0 || bytes.IndexByte(b, keyCtrlC) >= 0
}

// Active reports whether the terminal is in raw mode.
func (p *KeyPoller) Active() bool {
	return p.state != nil
}

// Close restores the terminal.
func (p *KeyPoller) Close() error {
	if p.state == nil {
		return nil
	}
	err := term.Restore(p.fd, p.state)
	p.state = nil
	return err
}

// CRLF returns a writer that turns bare newlines into CRLF, which raw mode needs.
func CRLF(w io.Writer) io.Writer {
	return crlfWriter{w: w}
}

type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if bytes.IndexByte(p, '\n') < 0 {
		return c.w.Write(p)
	}
	converted := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	if _, err := c.w.Write(converted); err != nil {
		return 0, err
	}
	return len(p), nil
}
