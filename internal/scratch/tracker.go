// Package scratch tracks a scratch-to-reveal card: an opaque covering layer that
// pointer strokes erase until enough of the picture underneath shows through.
package scratch

import (
	"image"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/photofx/photofx/internal/metrics"
)

const (
	// BrushRadius is the radius in pixels of the soft eraser.
	BrushRadius = 50
	// RevealThreshold is the cleared percentage past which the card reveals.
	RevealThreshold = 55.0
	// SparkleChance is the probability that a move spawns a sparkle.
	SparkleChance = 0.4
	// MaxSparkles caps the sparkles kept alive at once.
	MaxSparkles = 15
	// SparkleTTL is how long a sparkle lives.
	SparkleTTL = 600 * time.Millisecond

	// pixels below this alpha count as cleared
	clearedAlpha = 128
)

// Phase is the pointer state of a tracker.
type Phase int

const (
	Idle Phase = iota
	Scratching
	Revealed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Scratching:
		return "scratching"
	case Revealed:
		return "revealed"
	default:
		return "unknown"
	}
}

// Sparkle is a transient marker spawned at the pointer.
type Sparkle struct {
	ID     uint64    `json:"id" yaml:"id"`
	X      float64   `json:"x" yaml:"x"`
	Y      float64   `json:"y" yaml:"y"`
	BornAt time.Time `json:"born_at" yaml:"born_at"`
}

// State is a point-in-time view of a tracker.
type State struct {
	Phase          Phase
	RevealProgress float64
	IsRevealed     bool
	Sparkles       []Sparkle
}

// Tracker owns the covering layer and the reveal progress. It is safe for
// concurrent use; pointer events are serialized.
type Tracker struct {
	mu sync.Mutex

	cover     *image.NRGBA
	radius    float64
	threshold float64
	rng       *rand.Rand
	clock     func() time.Time
	onReveal  func()

	phase    Phase
	progress float64
	revealed bool
	sparkles []Sparkle
	nextID   uint64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRand sets the random source used for the cover texture and sparkles.
func WithRand(r *rand.Rand) Option {
	return func(t *Tracker) {
		if r != nil {
			t.rng = r
		}
	}
}

// WithSeed seeds a deterministic random source.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// WithClock sets the time source used for sparkle lifetimes.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithRadius overrides the eraser radius.
func WithRadius(radius float64) Option {
	return func(t *Tracker) {
		if radius > 0 {
			t.radius = radius
		}
	}
}

// WithThreshold overrides the reveal threshold percentage.
func WithThreshold(threshold float64) Option {
	return func(t *Tracker) {
		if threshold > 0 && threshold <= 100 {
			t.threshold = threshold
		}
	}
}

// OnReveal registers the completion callback. It runs at most once.
func OnReveal(fn func()) Option {
	return func(t *Tracker) { t.onReveal = fn }
}

// New returns a tracker with a freshly painted width x height cover. A
// non-positive size yields a tracker without a cover whose events are no-ops.
func New(width, height int, opts ...Option) *Tracker {
	t := &Tracker{
		radius:    BrushRadius,
		threshold: RevealThreshold,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.rng == nil {
		t.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if width > 0 && height > 0 {
		t.cover = image.NewNRGBA(image.Rect(0, 0, width, height))
		paintCover(t.cover, t.rng)
	}
	return t
}

// PointerDown starts a stroke.
func (t *Tracker) PointerDown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cover == nil || t.revealed {
		return
	}
	t.phase = Scratching
}

// PointerUp ends a stroke. Progress is kept.
func (t *Tracker) PointerUp() {
	t.endStroke()
}

// PointerLeave ends a stroke when the pointer leaves the card.
func (t *Tracker) PointerLeave() {
	t.endStroke()
}

func (t *Tracker) endStroke() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase == Scratching {
		t.phase = Idle
	}
}

// PointerMove erases around (x, y) while a stroke is active, updates the
// progress and fires the reveal callback the first time the threshold is passed.
// It returns the progress after the move.
func (t *Tracker) PointerMove(x, y float64) float64 {
	t.mu.Lock()
	if t.cover == nil || t.phase != Scratching || t.revealed {
		progress := t.progress
		t.mu.Unlock()
		return progress
	}

	eraseSoftCircle(t.cover, x, y, t.radius)
	t.maybeSparkle(x, y)
	t.progress = clearedPercent(t.cover)

	var fire func()
	if t.progress > t.threshold && !t.revealed {
		t.revealed = true
		t.phase = Revealed
		fire = t.onReveal
		metrics.RecordScratchReveal()
	}
	progress := t.progress
	t.mu.Unlock()

	if fire != nil {
		fire()
	}
	return progress
}

func (t *Tracker) maybeSparkle(x, y float64) {
	now := t.clock()
	t.sparkles = liveSparkles(t.sparkles, now)

	if t.rng.Float64() >= SparkleChance {
		return
	}

	t.nextID++
	t.sparkles = append(t.sparkles, Sparkle{ID: t.nextID, X: x, Y: y, BornAt: now})
	if over := len(t.sparkles) - MaxSparkles; over > 0 {
		t.sparkles = append(t.sparkles[:0], t.sparkles[over:]...)
	}
}

func liveSparkles(sparkles []Sparkle, now time.Time) []Sparkle {
	kept := sparkles[:0]
	for _, s := range sparkles {
		if now.Sub(s.BornAt) < SparkleTTL {
			kept = append(kept, s)
		}
	}
	return kept
}

// Progress returns the cleared percentage (0-100).
func (t *Tracker) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Revealed reports whether the card has revealed. Once true it stays true.
func (t *Tracker) Revealed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.revealed
}

// Sparkles returns the sparkles still alive, oldest first.
func (t *Tracker) Sparkles() []Sparkle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sparkles = liveSparkles(t.sparkles, t.clock())
	return append([]Sparkle(nil), t.sparkles...)
}

// State returns a copy of the tracker state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sparkles = liveSparkles(t.sparkles, t.clock())
	return State{
		Phase:          t.phase,
		RevealProgress: t.progress,
		IsRevealed:     t.revealed,
		Sparkles:       append([]Sparkle(nil), t.sparkles...),
	}
}

// eraseSoftCircle applies destination-out compositing of a radial gradient
// that is fully opaque at the centre and transparent at the radius.
func eraseSoftCircle(img *image.NRGBA, cx, cy, radius float64) {
	b := img.Bounds()
	minX := max(b.Min.X, int(math.Floor(cx-radius)))
	maxX := min(b.Max.X, int(math.Ceil(cx+radius))+1)
	minY := max(b.Min.Y, int(math.Floor(cy-radius)))
	maxY := min(b.Max.Y, int(math.Ceil(cy+radius))+1)

	for py := minY; py < maxY; py++ {
		for px := minX; px < maxX; px++ {
			dx := float64(px) + 0.5 - cx
			dy := float64(py) + 0.5 - cy
			d := math.Hypot(dx, dy)
			if d >= radius {
				continue
			}
			strength := 1 - d/radius

			i := img.PixOffset(px, py) + 3
			alpha := float64(img.Pix[i]) * (1 - strength)
			img.Pix[i] = uint8(math.Round(alpha))
		}
	}
}

// clearedPercent is the share of pixels with alpha below clearedAlpha.
func clearedPercent(img *image.NRGBA) float64 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	cleared := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] < clearedAlpha {
			cleared++
		}
	}
	return float64(cleared*100) / float64(total)
}
