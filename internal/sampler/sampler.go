// Package sampler reports CPU and memory usage of the running process.
package sampler

import (
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/verte-zerg/inputsim/internal/model"
)

// ErrUnsupported is returned where process CPU time cannot be read.
var ErrUnsupported = errors.New("sampler: process cpu time unsupported on this platform")

// Sampler takes one resource sample.
type Sampler interface {
	Sample() (model.Usage, error)
}

// Options configure a Process sampler. Zero values use the real process.
type Options struct {
	Clock   func() time.Time
	CPUTime func() (time.Duration, error)
	Memory  func() uint64
}

// Process samples the current process. CPU percent covers the time since the
// previous sample and may exceed 100 on multi-core machines.
type Process struct {
	clock   func() time.Time
	cpuTime func() (time.Duration, error)
	memory  func() uint64

	mu      sync.Mutex
	lastCPU time.Duration
	lastAt  time.Time
}

// New validates that CPU time is readable and primes the first interval.
func New(opts Options) (*Process, error) {
	p := &Process{
		clock:   opts.Clock,
		cpuTime: opts.CPUTime,
		memory:  opts.Memory,
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.cpuTime == nil {
		p.cpuTime = processCPUTime
	}
	if p.memory == nil {
		p.memory = runtimeMemory
	}
	cpu, err := p.cpuTime()
	if err != nil {
		return nil, err
	}
	p.lastCPU = cpu
	p.lastAt = p.clock()
	return p, nil
}

// Sample implements Sampler.
func (p *Process) Sample() (model.Usage, error) {
	cpu, err := p.cpuTime()
	if err != nil {
		return model.Usage{}, err
	}
	now := p.clock()

	p.mu.Lock()
	defer p.mu.Unlock()
	usage := model.Usage{MemoryBytes: p.memory()}
	if wall := now.Sub(p.lastAt); wall > 0 {
		usage.CPUPercent = float64(cpu-p.lastCPU) / float64(wall) * 100
	}
	if usage.CPUPercent < 0 {
		usage.CPUPercent = 0
	}
	p.lastCPU = cpu
	p.lastAt = now
	return usage, nil
}

func runtimeMemory() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys
}

// Func adapts a function to the Sampler interface.
type Func func() (model.Usage, error)

// Sample implements Sampler.
func (f Func) Sample() (model.Usage, error) {
	return f()
}
