package pattern

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/verte-zerg/inputsim/internal/config"
	"github.com/verte-zerg/inputsim/internal/model"
)

// DefaultBounds is the surface size used when none is configured.
var DefaultBounds = model.Bounds{Width: 1920, Height: 1080}

// MousePatterns lists every weighted movement pattern.
var MousePatterns = []Pattern{Random, Linear, Circular, Targeted}

const (
	linearStepDelay    = 10 * time.Millisecond
	circularStepDelay  = 20 * time.Millisecond
	targetedStepDelay  = 20 * time.Millisecond
	targetedEdgeDelay  = 30 * time.Millisecond
	clickHold          = 80 * time.Millisecond
	doubleClickGap     = 50 * time.Millisecond
	maxScrollNotches   = 3
	targetedMinSteps   = 5
	targetedMaxSteps   = 20
	targetedCurveRatio = 0.1
)

// ButtonWeight is a click button and its selection weight.
type ButtonWeight struct {
	Button model.Button
	Weight float64
}

// Target is a weighted point expressed as a fraction of the surface size.
type Target struct {
	XRatio float64
	YRatio float64
	Weight float64
}

// MouseSettings configures the mouse generators.
type MouseSettings struct {
	Bounds                 model.Bounds
	MinDistance            float64
	MaxDistance            float64
	ClickProbability       float64
	ScrollProbability      float64
	DoubleClickProbability float64
	Buttons                []ButtonWeight
	LinearMinSteps         int
	LinearMaxSteps         int
	CircularMinRadius      float64
	CircularMaxRadius      float64
	CircularMinSteps       int
	CircularMaxSteps       int
	Targets                []Target
	Patterns               []Descriptor
}

// DefaultMouseSettings returns the built-in mouse behaviour.
func DefaultMouseSettings() MouseSettings {
	return MouseSettings{
		Bounds:                 DefaultBounds,
		MinDistance:            10,
		MaxDistance:            100,
		ClickProbability:       0.2,
		ScrollProbability:      0.1,
		DoubleClickProbability: 0.05,
		Buttons: []ButtonWeight{
			{Button: model.ButtonLeft, Weight: 0.7},
			{Button: model.ButtonRight, Weight: 0.2},
			{Button: model.ButtonMiddle, Weight: 0.1},
		},
		LinearMinSteps:    5,
		LinearMaxSteps:    20,
		CircularMinRadius: 20,
		CircularMaxRadius: 150,
		CircularMinSteps:  8,
		CircularMaxSteps:  24,
		Targets:           []Target{{XRatio: 0.5, YRatio: 0.5, Weight: 5}},
		Patterns: []Descriptor{
			{Pattern: Random, Weight: 0.4},
			{Pattern: Linear, Weight: 0.3},
			{Pattern: Circular, Weight: 0.2},
			{Pattern: Targeted, Weight: 0.1},
		},
	}
}

// LoadBounds reads screen_width and screen_height.
func LoadBounds(r *config.Reader) model.Bounds {
	w := r.Int("screen_width", DefaultBounds.Width)
	h := r.Int("screen_height", DefaultBounds.Height)
	if w < 1 || h < 1 {
		r.Logger().Warn("invalid surface size, using default",
			"width", w, "height", h, "default", fmt.Sprintf("%dx%d", DefaultBounds.Width, DefaultBounds.Height))
		return DefaultBounds
	}
	return model.Bounds{Width: w, Height: h}
}

// LoadMouseSettings resolves mouse settings from configuration.
func LoadMouseSettings(r *config.Reader) MouseSettings {
	s := DefaultMouseSettings()
	logger := r.Logger()

	s.Bounds = LoadBounds(r)
	s.MinDistance, s.MaxDistance = r.FloatRange("movement_min_distance", "movement_max_distance",
		s.MinDistance, s.MaxDistance, 0)

	click := r.Probability("click_probability", s.ClickProbability)
	scroll := r.Probability("scroll_probability", s.ScrollProbability)
	if click+scroll > 1 {
		logger.Warn("click and scroll probabilities exceed 1, using defaults",
			"click_probability", click, "scroll_probability", scroll)
	} else {
		s.ClickProbability, s.ScrollProbability = click, scroll
	}
	s.DoubleClickProbability = r.Probability("double_click_probability", s.DoubleClickProbability)

	if names := r.Strings("button_types", nil); names != nil {
		if buttons := parseButtons(names, r.Floats("button_weights", nil), logger); len(buttons) > 0 {
			s.Buttons = buttons
		}
	} else if weights := r.Floats("button_weights", nil); weights != nil {
		names := make([]string, len(s.Buttons))
		for i, b := range s.Buttons {
			names[i] = string(b.Button)
		}
		s.Buttons = parseButtons(names, weights, logger)
	}

	s.LinearMinSteps, s.LinearMaxSteps = r.IntRange("linear_min_steps", "linear_max_steps",
		s.LinearMinSteps, s.LinearMaxSteps, 1)
	s.CircularMinRadius, s.CircularMaxRadius = r.FloatRange("circular_min_radius", "circular_max_radius",
		s.CircularMinRadius, s.CircularMaxRadius, 0)
	s.CircularMinSteps, s.CircularMaxSteps = r.IntRange("circular_min_steps", "circular_max_steps",
		s.CircularMinSteps, s.CircularMaxSteps, 1)

	if tables, ok := r.Tables("targeted_targets"); ok {
		s.Targets = parseTargets(tables, logger)
	}

	if names := r.Strings("movement_patterns", nil); names != nil {
		patterns := parsePatterns(names, MousePatterns, logger)
		if len(patterns) == 0 {
			logger.Warn("no known movement patterns configured, using defaults")
		} else {
			s.Patterns = Describe(patterns, r.Floats("movement_pattern_weights", nil), logger)
		}
	}
	return s
}

func parseButtons(names []string, weights []float64, logger *slog.Logger) []ButtonWeight {
	var out []ButtonWeight
	for i, name := range names {
		b := model.Button(strings.ToLower(strings.TrimSpace(name)))
		switch b {
		case model.ButtonLeft, model.ButtonRight, model.ButtonMiddle:
		default:
			logger.Warn("unknown button type ignored", "button", name)
			continue
		}
		w := 1.0
		if i < len(weights) {
			w = math.Max(weights[i], 0)
		}
		out = append(out, ButtonWeight{Button: b, Weight: w})
	}
	total := 0.0
	for _, b := range out {
		total += b.Weight
	}
	if total <= 0 && len(out) > 0 {
		logger.Warn("all button weights are zero, selecting uniformly")
		for i := range out {
			out[i].Weight = 1
		}
	}
	return out
}

func parseTargets(tables []map[string]any, logger *slog.Logger) []Target {
	out := make([]Target, 0, len(tables))
	for i, table := range tables {
		x, okX := config.NumberField(table, "x_ratio")
		y, okY := config.NumberField(table, "y_ratio")
		if !okX || !okY || x < 0 || x > 1 || y < 0 || y > 1 {
			logger.Warn("invalid target ignored", "index", i)
			continue
		}
		w, ok := config.NumberField(table, "weight")
		if !ok {
			w = 1
		}
		out = append(out, Target{XRatio: x, YRatio: y, Weight: math.Max(w, 0)})
	}
	return out
}

// Mouse generates pointer sequences.
type Mouse struct {
	settings MouseSettings
	logger   *slog.Logger
}

// NewMouse builds the mouse device.
func NewMouse(settings MouseSettings, logger *slog.Logger) *Mouse {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(settings.Patterns) == 0 {
		settings.Patterns = DefaultMouseSettings().Patterns
	}
	if len(settings.Buttons) == 0 {
		settings.Buttons = DefaultMouseSettings().Buttons
	}
	return &Mouse{settings: settings, logger: logger}
}

// Name identifies the device.
func (m *Mouse) Name() string { return "mouse" }

// Bounds returns the receiving surface size.
func (m *Mouse) Bounds() model.Bounds { return m.settings.Bounds }

// Patterns returns the weighted movement patterns.
func (m *Mouse) Patterns() []Descriptor {
	return append([]Descriptor(nil), m.settings.Patterns...)
}

// Plan chooses between a click, a scroll and a weighted movement.
func (m *Mouse) Plan(rng *rand.Rand, cursor model.Point) Sequence {
	r := rng.Float64()
	switch {
	case r < m.settings.ClickProbability:
		return m.Generate(Click, rng, cursor)
	case r < m.settings.ClickProbability+m.settings.ScrollProbability:
		return m.Generate(Scroll, rng, cursor)
	default:
		return m.Generate(Choose(rng, m.settings.Patterns), rng, cursor)
	}
}

// Generate runs one mouse pattern starting from cursor.
func (m *Mouse) Generate(p Pattern, rng *rand.Rand, cursor model.Point) Sequence {
	bounds := m.settings.Bounds
	cursor = bounds.Clamp(cursor)
	var b builder
	var summary string

	switch p {
	case Random:
		dx, dy := Displacement(rng, m.settings.MinDistance, m.settings.MaxDistance)
		to := bounds.Clamp(offset(cursor, dx, dy))
		b.emit(model.NewPointerMove(to))
		summary = fmt.Sprintf("random move from (%d, %d) to (%d, %d)", cursor.X, cursor.Y, to.X, to.Y)
	case Linear:
		dx, dy := Displacement(rng, m.settings.MinDistance, m.settings.MaxDistance)
		end := bounds.Clamp(offset(cursor, dx, dy))
		steps := intBetween(rng, m.settings.LinearMinSteps, m.settings.LinearMaxSteps)
		for i := 1; i <= steps; i++ {
			if i > 1 {
				b.wait(linearStepDelay)
			}
			f := float64(i) / float64(steps)
			at := model.Point{
				X: cursor.X + int(float64(end.X-cursor.X)*f),
				Y: cursor.Y + int(float64(end.Y-cursor.Y)*f),
			}
			b.emit(model.NewPointerMove(bounds.Clamp(at)))
		}
		summary = fmt.Sprintf("linear move from (%d, %d) to (%d, %d) in %d steps", cursor.X, cursor.Y, end.X, end.Y, steps)
	case Circular:
		radius := floatBetween(rng, m.settings.CircularMinRadius, m.settings.CircularMaxRadius)
		steps := intBetween(rng, m.settings.CircularMinSteps, m.settings.CircularMaxSteps)
		center := fitCenter(bounds, cursor, radius)
		for i, at := range CirclePoints(center, radius, steps) {
			if i > 0 {
				b.wait(circularStepDelay)
			}
			b.emit(model.NewPointerMove(bounds.Clamp(at)))
		}
		summary = fmt.Sprintf("circular move around (%d, %d) with radius %.0f in %d steps", center.X, center.Y, radius, steps)
	case Targeted:
		if len(m.settings.Targets) == 0 {
			return m.Generate(Random, rng, cursor)
		}
		t := chooseTarget(rng, m.settings.Targets)
		goal := bounds.Clamp(model.Point{
			X: int(t.XRatio * float64(bounds.Width)),
			Y: int(t.YRatio * float64(bounds.Height)),
		})
		path := curvePath(rng, cursor, goal)
		steps := len(path)
		for i, at := range path {
			if i > 0 {
				b.wait(targetedDelay(i, steps))
			}
			b.emit(model.NewPointerMove(bounds.Clamp(at)))
		}
		summary = fmt.Sprintf("targeted move from (%d, %d) to (%d, %d)", cursor.X, cursor.Y, goal.X, goal.Y)
	case Click:
		button := m.chooseButton(rng)
		double := button == model.ButtonLeft && rng.Float64() < m.settings.DoubleClickProbability
		click(&b, button)
		if double {
			b.wait(doubleClickGap)
			click(&b, button)
			summary = fmt.Sprintf("%s double-click at (%d, %d)", button, cursor.X, cursor.Y)
		} else {
			summary = fmt.Sprintf("%s click at (%d, %d)", button, cursor.X, cursor.Y)
		}
	case Scroll:
		dir := 1
		if rng.Intn(2) == 0 {
			dir = -1
		}
		amount := dir * intBetween(rng, 1, maxScrollNotches) * model.WheelUnit
		b.emit(model.NewWheelDelta(amount))
		direction := "up"
		if amount < 0 {
			direction = "down"
		}
		summary = fmt.Sprintf("scroll %s by %d", direction, amount)
	default:
		m.logger.Warn("unknown movement pattern, using random", "pattern", string(p))
		return m.Generate(Random, rng, cursor)
	}
	return Sequence{Pattern: p, Events: b.events, Summary: summary}
}

func (m *Mouse) chooseButton(rng *rand.Rand) model.Button {
	total := 0.0
	for _, bw := range m.settings.Buttons {
		total += bw.Weight
	}
	if total <= 0 {
		return m.settings.Buttons[rng.Intn(len(m.settings.Buttons))].Button
	}
	r := rng.Float64() * total
	acc := 0.0
	for _, bw := range m.settings.Buttons {
		acc += bw.Weight
		if r < acc {
			return bw.Button
		}
	}
	return m.settings.Buttons[len(m.settings.Buttons)-1].Button
}

func chooseTarget(rng *rand.Rand, targets []Target) Target {
	total := 0.0
	for _, t := range targets {
		total += t.Weight
	}
	if total <= 0 {
		return targets[rng.Intn(len(targets))]
	}
	r := rng.Float64() * total
	acc := 0.0
	for _, t := range targets {
		acc += t.Weight
		if r < acc {
			return t
		}
	}
	return targets[len(targets)-1]
}

func click(b *builder, button model.Button) {
	b.emit(model.NewButtonDown(button))
	b.wait(clickHold)
	b.emit(model.NewButtonUp(button))
}

// Displacement draws a movement vector whose magnitude lies in [min, max].
// Each axis is uniform in [-max, max]; short vectors are stretched to min and
// long ones shrunk to max. A zero vector becomes (1, 0) before stretching.
func Displacement(rng *rand.Rand, minDist, maxDist float64) (float64, float64) {
	dx := floatBetween(rng, -maxDist, maxDist)
	dy := floatBetween(rng, -maxDist, maxDist)
	mag := math.Hypot(dx, dy)
	if mag == 0 {
		dx, dy, mag = 1, 0, 1
	}
	switch {
	case mag < minDist:
		scale := minDist / mag
		dx, dy = dx*scale, dy*scale
	case mag > maxDist:
		scale := maxDist / mag
		dx, dy = dx*scale, dy*scale
	}
	return dx, dy
}

func offset(p model.Point, dx, dy float64) model.Point {
	return model.Point{X: p.X + int(math.Round(dx)), Y: p.Y + int(math.Round(dy))}
}

// fitCenter pulls c inward so a circle of radius r stays on the surface.
func fitCenter(bounds model.Bounds, c model.Point, r float64) model.Point {
	pad := int(math.Ceil(r))
	fit := func(v, size int) int {
		lo, hi := pad, size-1-pad
		if hi < lo {
			return size / 2
		}
		return max(lo, min(hi, v))
	}
	return model.Point{X: fit(c.X, bounds.Width), Y: fit(c.Y, bounds.Height)}
}

// CirclePoints returns steps points on a circle, the i-th at angle 2πi/steps.
func CirclePoints(center model.Point, radius float64, steps int) []model.Point {
	if steps < 1 {
		return nil
	}
	out := make([]model.Point, steps)
	for i := 0; i < steps; i++ {
		angle := 2 * math.Pi * float64(i) / float64(steps)
		out[i] = model.Point{
			X: center.X + int(math.Round(radius*math.Cos(angle))),
			Y: center.Y + int(math.Round(radius*math.Sin(angle))),
		}
	}
	return out
}

// curvePath follows a quadratic Bézier from start to goal whose control point
// is the midpoint displaced by up to 10% of the distance in a random direction.
func curvePath(rng *rand.Rand, start, goal model.Point) []model.Point {
	sx, sy := float64(start.X), float64(start.Y)
	gx, gy := float64(goal.X), float64(goal.Y)
	distance := math.Hypot(gx-sx, gy-sy)
	steps := max(targetedMinSteps, min(targetedMaxSteps, int(distance/10)))

	angle := rng.Float64() * 2 * math.Pi
	bend := rng.Float64() * distance * targetedCurveRatio
	cx := (sx+gx)/2 + bend*math.Cos(angle)
	cy := (sy+gy)/2 + bend*math.Sin(angle)

	out := make([]model.Point, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		u := 1 - t
		out[i-1] = model.Point{
			X: int(math.Round(u*u*sx + 2*u*t*cx + t*t*gx)),
			Y: int(math.Round(u*u*sy + 2*u*t*cy + t*t*gy)),
		}
	}
	return out
}

// targetedDelay is the pause before step i (0-based) of a targeted path:
// slower near both ends.
func targetedDelay(i, steps int) time.Duration {
	prev := float64(i)
	if prev < float64(steps)*0.2 || prev > float64(steps)*0.8 {
		return targetedEdgeDelay
	}
	return targetedStepDelay
}
