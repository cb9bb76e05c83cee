// Package model defines shared data structures.
package model

import (
	"fmt"
	"time"
)

// EventKind identifies a primitive input event.
type EventKind int

const (
	KeyDown EventKind = iota + 1
	KeyUp
	CharInput
	PointerMove
	ButtonDown
	ButtonUp
	WheelDelta
)

func (k EventKind) String() string {
	switch k {
	case KeyDown:
		return "key_down"
	case KeyUp:
		return "key_up"
	case CharInput:
		return "char"
	case PointerMove:
		return "pointer_move"
	case ButtonDown:
		return "button_down"
	case ButtonUp:
		return "button_up"
	case WheelDelta:
		return "wheel"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// KeyCode is a virtual key code.
type KeyCode uint8

// Virtual key codes for keys that have no printable character.
const (
	KeyBackspace KeyCode = 0x08
	KeyTab       KeyCode = 0x09
	KeyEnter     KeyCode = 0x0D
	KeyShift     KeyCode = 0x10
	KeyControl   KeyCode = 0x11
	KeyAlt       KeyCode = 0x12
	KeyCapsLock  KeyCode = 0x14
	KeyEscape    KeyCode = 0x1B
	KeySpace     KeyCode = 0x20
)

// Button is a mouse button.
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// WheelUnit is the amount reported for one wheel notch.
const WheelUnit = 120

// Point is a position on the receiving surface.
type Point struct {
	X int
	Y int
}

// Bounds is the size of the receiving surface.
type Bounds struct {
	Width  int
	Height int
}

// Contains reports whether p lies inside [0,Width-1]x[0,Height-1].
func (b Bounds) Contains(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < b.Width && p.Y < b.Height
}

// Clamp pulls p inside the bounds.
func (b Bounds) Clamp(p Point) Point {
	return Point{X: clampInt(p.X, 0, b.Width-1), Y: clampInt(p.Y, 0, b.Height-1)}
}

// Center returns the middle of the surface.
func (b Bounds) Center() Point {
	return Point{X: b.Width / 2, Y: b.Height / 2}
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Event is one primitive input action. Only the fields relevant to Kind are set.
type Event struct {
	Kind   EventKind `json:"kind"`
	Code   KeyCode   `json:"code,omitempty"`
	Char   rune      `json:"char,omitempty"`
	X      int       `json:"x,omitempty"`
	Y      int       `json:"y,omitempty"`
	Button Button    `json:"button,omitempty"`
	Delta  int       `json:"delta,omitempty"`
}

// NewKeyDown builds a KeyDown event.
func NewKeyDown(code KeyCode) Event { return Event{Kind: KeyDown, Code: code} }

// NewKeyUp builds a KeyUp event.
func NewKeyUp(code KeyCode) Event { return Event{Kind: KeyUp, Code: code} }

// NewCharInput builds a CharInput event.
func NewCharInput(ch rune) Event { return Event{Kind: CharInput, Char: ch} }

// NewPointerMove builds a PointerMove event.
func NewPointerMove(p Point) Event { return Event{Kind: PointerMove, X: p.X, Y: p.Y} }

// NewButtonDown builds a ButtonDown event.
func NewButtonDown(b Button) Event { return Event{Kind: ButtonDown, Button: b} }

// NewButtonUp builds a ButtonUp event.
func NewButtonUp(b Button) Event { return Event{Kind: ButtonUp, Button: b} }

// NewWheelDelta builds a WheelDelta event.
func NewWheelDelta(amount int) Event { return Event{Kind: WheelDelta, Delta: amount} }

func (e Event) String() string {
	switch e.Kind {
	case KeyDown, KeyUp:
		return fmt.Sprintf("%s(0x%02X)", e.Kind, uint8(e.Code))
	case CharInput:
		return fmt.Sprintf("%s(%q)", e.Kind, e.Char)
	case PointerMove:
		return fmt.Sprintf("%s(%d,%d)", e.Kind, e.X, e.Y)
	case ButtonDown, ButtonUp:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Button)
	case WheelDelta:
		return fmt.Sprintf("%s(%d)", e.Kind, e.Delta)
	default:
		return e.Kind.String()
	}
}

// TimedEvent pairs an event with the pause taken before delivering it.
type TimedEvent struct {
	Event Event
	Delay time.Duration
}

// Usage is a single resource sample of the running process.
type Usage struct {
	CPUPercent  float64
	MemoryBytes uint64
}

// MemoryMB reports memory in mebibytes.
func (u Usage) MemoryMB() float64 {
	return float64(u.MemoryBytes) / (1024 * 1024)
}

// PatternCount tracks how often a pattern ran within a session.
type PatternCount struct {
	Pattern  string
	Runs     int
	Events   int
	Failures int
}

// SessionRecord captures a finished engine session.
type SessionRecord struct {
	ID           string
	Variant      string
	StartedAt    time.Time
	EndedAt      time.Time
	Events       int64
	Failures     int64
	Recoveries   int
	Refreshes    int
	FinalUsage   Usage
	ConfigSource string
	Patterns     []PatternCount
}

// HistoryConfig defines filters for the session history report.
type HistoryConfig struct {
	Variant string
	Since   *time.Time
	Last    int
}

// SessionAggregate summarizes a stored session for reporting.
type SessionAggregate struct {
	ID         string
	Variant    string
	StartedAt  time.Time
	EndedAt    time.Time
	Events     int64
	Failures   int64
	Recoveries int
	Refreshes  int
}

// PatternAggregate aggregates pattern counters across sessions.
type PatternAggregate struct {
	Pattern  string
	Runs     int
	Events   int
	Failures int
}
