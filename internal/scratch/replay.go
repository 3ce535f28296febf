package scratch

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Script is a recorded sequence of pointer strokes over a card.
//
//	width: 400
//	height: 300
//	seed: 7
//	spacing: 10
//	strokes:
//	  - points: [{x: 0, y: 150}, {x: 400, y: 150}]
//	  - points: [{x: 200, y: 0}, {x: 200, y: 300}]
//	    leave: true
type Script struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Seed   uint64 `yaml:"seed"`
	// Spacing interpolates extra move events so consecutive points are at most
	// this many pixels apart. Zero replays the points as given.
	Spacing float64  `yaml:"spacing"`
	Strokes []Stroke `yaml:"strokes"`
}

// Stroke is one press-move-release gesture.
type Stroke struct {
	Points []Point `yaml:"points"`
	// Leave ends the stroke by leaving the card instead of releasing the pointer.
	Leave bool `yaml:"leave"`
}

// Point is a pointer position in card pixels.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// StrokeResult summarises the tracker after one stroke.
type StrokeResult struct {
	Index    int
	Moves    int
	Progress float64
	Revealed bool
	Sparkles int
}

// ReplayResult is the outcome of replaying a script.
type ReplayResult struct {
	Strokes []StrokeResult
	// RevealedAtStroke is the index of the stroke that revealed the card, or -1.
	RevealedAtStroke int
	Reveals          int
	Tracker          *Tracker
}

// LoadScript decodes a YAML stroke script.
func LoadScript(r io.Reader) (*Script, error) {
	var script Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&script); err != nil {
		return nil, fmt.Errorf("decode stroke script: %w", err)
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &script, nil
}

// LoadScriptFile reads a YAML stroke script from path.
func LoadScriptFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint:errcheck

	return LoadScript(f)
}

const (
	// MaxDimension bounds script width and height in pixels.
	MaxDimension = 8192
	// MaxReplayMoves bounds the move events a script may expand to after
	// interpolation.
	MaxReplayMoves = 100_000
)

// Validate checks the script dimensions, spacing and the number of move
// events it would replay.
func (s *Script) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return errors.New("script width and height must be positive")
	}
	if s.Width > MaxDimension || s.Height > MaxDimension {
		return fmt.Errorf("script width and height must not exceed %d", MaxDimension)
	}
	if s.Spacing < 0 || math.IsNaN(s.Spacing) || math.IsInf(s.Spacing, 0) {
		return errors.New("script spacing must be a finite non-negative number")
	}

	var total float64
	for i, stroke := range s.Strokes {
		for _, p := range stroke.Points {
			if !finite(p.X) || !finite(p.Y) {
				return fmt.Errorf("stroke %d has a non-finite point", i)
			}
		}
		total += moveCount(stroke.Points, s.Spacing)
		if total > MaxReplayMoves {
			return fmt.Errorf("script expands to more than %d moves", MaxReplayMoves)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// moveCount mirrors interpolate without allocating. It works in float64 so
// a tiny spacing cannot overflow the step count.
func moveCount(points []Point, spacing float64) float64 {
	if spacing <= 0 || len(points) < 2 {
		return float64(len(points))
	}
	n := 1.0
	for i := 1; i < len(points); i++ {
		from, to := points[i-1], points[i]
		steps := math.Ceil(math.Hypot(to.X-from.X, to.Y-from.Y) / spacing)
		n += math.Max(steps, 1)
	}
	return n
}

// Replay runs the script against a fresh tracker. A fixed clock starting at
// start advances 16ms per move so sparkle lifetimes are deterministic.
func Replay(script *Script, start time.Time, opts ...Option) (*ReplayResult, error) {
	if script == nil {
		return nil, errors.New("script is required")
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}

	now := start
	currentStroke := 0
	result := &ReplayResult{RevealedAtStroke: -1}

	base := []Option{
		WithSeed(script.Seed),
		WithClock(func() time.Time { return now }),
	}
	base = append(base, opts...)
	base = append(base, OnReveal(func() {
		result.Reveals++
		result.RevealedAtStroke = currentStroke
	}))

	tracker := New(script.Width, script.Height, base...)
	result.Tracker = tracker

	for i, stroke := range script.Strokes {
		currentStroke = i
		moves := 0

		tracker.PointerDown()
		for _, p := range interpolate(stroke.Points, script.Spacing) {
			now = now.Add(16 * time.Millisecond)
			tracker.PointerMove(p.X, p.Y)
			moves++
		}
		if stroke.Leave {
			tracker.PointerLeave()
		} else {
			tracker.PointerUp()
		}

		state := tracker.State()
		result.Strokes = append(result.Strokes, StrokeResult{
			Index:    i,
			Moves:    moves,
			Progress: state.RevealProgress,
			Revealed: state.IsRevealed,
			Sparkles: len(state.Sparkles),
		})
	}

	return result, nil
}

func interpolate(points []Point, spacing float64) []Point {
	if spacing <= 0 || len(points) < 2 {
		return points
	}

	out := []Point{points[0]}
	for i := 1; i < len(points); i++ {
		from, to := points[i-1], points[i]
		dist := math.Hypot(to.X-from.X, to.Y-from.Y)
		steps := int(math.Ceil(dist / spacing))
		for s := 1; s <= steps; s++ {
			f := float64(s) / float64(steps)
			out = append(out, Point{X: from.X + (to.X-from.X)*f, Y: from.Y + (to.Y-from.Y)*f})
		}
		if steps == 0 {
			out = append(out, to)
		}
	}
	return out
}
