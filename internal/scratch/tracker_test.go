package scratch

import (
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewCoverIsOpaque(t *testing.T) {
	tr := New(64, 48, WithSeed(1))

	img := tr.Snapshot(0)
	require.NotNil(t, img)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())
	for i := 3; i < len(img.Pix); i += 4 {
		require.Equal(t, uint8(255), img.Pix[i], "cover pixel %d not opaque", i/4)
	}

	assert.Equal(t, 0.0, tr.Progress())
	assert.False(t, tr.Revealed())
	assert.Equal(t, Idle, tr.State().Phase)
}

func TestCoverIsDeterministicForSeed(t *testing.T) {
	a := New(32, 32, WithSeed(42)).Snapshot(0)
	b := New(32, 32, WithSeed(42)).Snapshot(0)
	c := New(32, 32, WithSeed(43)).Snapshot(0)

	assert.Equal(t, a.Pix, b.Pix)
	assert.NotEqual(t, a.Pix, c.Pix)
}

func TestZeroSizeCanvasIsNoOp(t *testing.T) {
	called := false
	tr := New(0, 0, OnReveal(func() { called = true }))

	tr.PointerDown()
	assert.Equal(t, 0.0, tr.PointerMove(10, 10))
	tr.PointerUp()

	assert.Nil(t, tr.Snapshot(10))
	assert.Equal(t, Idle, tr.State().Phase)
	assert.False(t, tr.Revealed())
	assert.False(t, called)
}

func TestMoveWithoutPointerDownDoesNothing(t *testing.T) {
	tr := New(100, 100, WithSeed(1))

	assert.Equal(t, 0.0, tr.PointerMove(50, 50))
	assert.Empty(t, tr.Sparkles())
}

func TestSingleEraseClearsInnerCircle(t *testing.T) {
	tr := New(200, 200, WithSeed(1))
	tr.PointerDown()
	progress := tr.PointerMove(100, 100)

	// alpha drops below 128 where 255*d/r < 128, i.e. within about half the radius
	assert.InDelta(t, 4.9, progress, 0.3)
	assert.False(t, tr.Revealed())
	assert.Equal(t, Scratching, tr.State().Phase)

	img := tr.Snapshot(0)
	assert.Less(t, img.NRGBAAt(100, 100).A, uint8(8))
	assert.Equal(t, uint8(255), img.NRGBAAt(100, 160).A, "outside the radius stays opaque")
	edge := img.NRGBAAt(100, 140).A
	assert.Greater(t, edge, uint8(0))
	assert.Less(t, edge, uint8(255))
}

func TestPointerUpAndLeaveStopErasing(t *testing.T) {
	for name, end := range map[string]func(*Tracker){
		"up":    (*Tracker).PointerUp,
		"leave": (*Tracker).PointerLeave,
	} {
		t.Run(name, func(t *testing.T) {
			tr := New(200, 200, WithSeed(1))
			tr.PointerDown()
			first := tr.PointerMove(50, 50)
			end(tr)

			assert.Equal(t, Idle, tr.State().Phase)
			assert.Equal(t, first, tr.PointerMove(150, 150))
			assert.Equal(t, first, tr.Progress(), "progress persists after the stroke")
		})
	}
}

func TestRevealRequiresStrictlyMoreThanThreshold(t *testing.T) {
	reveals := 0
	tr := New(2, 1, WithSeed(1), WithRadius(1), WithThreshold(50), OnReveal(func() { reveals++ }))
	tr.PointerDown()

	assert.Equal(t, 50.0, tr.PointerMove(0.5, 0.5))
	assert.False(t, tr.Revealed())
	assert.Zero(t, reveals)

	assert.Equal(t, 100.0, tr.PointerMove(1.5, 0.5))
	assert.True(t, tr.Revealed())
	assert.Equal(t, 1, reveals)
}

func TestRevealAtDefaultThreshold(t *testing.T) {
	reveals := 0
	tr := New(20, 1, WithSeed(1), WithRadius(1), OnReveal(func() { reveals++ }))
	tr.PointerDown()

	for x := 0; x < 11; x++ {
		tr.PointerMove(float64(x)+0.5, 0.5)
	}
	assert.InDelta(t, 55.0, tr.Progress(), 1e-9)
	assert.False(t, tr.Revealed(), "exactly the threshold does not reveal")

	tr.PointerMove(11.5, 0.5)
	assert.InDelta(t, 60.0, tr.Progress(), 1e-9)
	assert.True(t, tr.Revealed())
	assert.Equal(t, 1, reveals)
}

func TestRevealFiresOnceAndLatches(t *testing.T) {
	reveals := 0
	tr := New(100, 100, WithSeed(3), OnReveal(func() { reveals++ }))

	tr.PointerDown()
	for y := 10.0; y <= 90; y += 20 {
		for x := 0.0; x <= 100; x += 5 {
			tr.PointerMove(x, y)
		}
	}
	require.True(t, tr.Revealed())
	require.Equal(t, 1, reveals)
	assert.Equal(t, Revealed, tr.State().Phase)
	revealedAt := tr.Progress()
	assert.Greater(t, revealedAt, RevealThreshold)

	tr.PointerUp()
	tr.PointerDown()
	tr.PointerMove(50, 50)
	tr.PointerMove(0, 0)

	assert.Equal(t, 1, reveals, "callback is not re-invoked")
	assert.True(t, tr.Revealed())
	assert.Equal(t, revealedAt, tr.Progress(), "moves after reveal do not erase")
	assert.Equal(t, Revealed, tr.State().Phase)
}

func TestSparklesAreCappedAndExpire(t *testing.T) {
	clock := newTestClock()
	tr := New(400, 400, WithSeed(9), WithClock(clock.Now))

	tr.PointerDown()
	for i := 0; i < 200; i++ {
		tr.PointerMove(200, 200)
	}

	sparkles := tr.Sparkles()
	assert.Len(t, sparkles, MaxSparkles)
	for i := 1; i < len(sparkles); i++ {
		assert.Greater(t, sparkles[i].ID, sparkles[i-1].ID, "sparkles stay in spawn order")
	}
	assert.Equal(t, 200.0, sparkles[0].X)

	clock.Advance(SparkleTTL - time.Millisecond)
	assert.Len(t, tr.Sparkles(), MaxSparkles)

	clock.Advance(time.Millisecond)
	assert.Empty(t, tr.Sparkles())
}

func TestSparkleSpawnRate(t *testing.T) {
	clock := newTestClock()
	tr := New(200, 200, WithRand(rand.New(rand.NewPCG(1, 2))), WithClock(clock.Now))

	tr.PointerDown()
	spawned := uint64(0)
	for i := 0; i < 1000; i++ {
		tr.PointerMove(100, 100)
		if s := tr.Sparkles(); len(s) > 0 {
			spawned = s[len(s)-1].ID
		}
		clock.Advance(SparkleTTL)
	}

	assert.InDelta(t, 400, float64(spawned), 60)
}

func TestSnapshotScalesDown(t *testing.T) {
	tr := New(400, 200, WithSeed(1))

	img := tr.Snapshot(100)
	require.NotNil(t, img)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	full := tr.Snapshot(1000)
	assert.Equal(t, 400, full.Bounds().Dx())
}

func TestConcurrentMovesAreSerialized(t *testing.T) {
	tr := New(120, 120, WithSeed(5))
	tr.PointerDown()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tr.PointerMove(float64(i*15), float64(j*12))
				_ = tr.State()
			}
		}(i)
	}
	wg.Wait()

	assert.Greater(t, tr.Progress(), 0.0)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "scratching", Scratching.String())
	assert.Equal(t, "revealed", Revealed.String())
	assert.Equal(t, "unknown", Phase(9).String())
}

func TestReplayScript(t *testing.T) {
	script, err := LoadScript(strings.NewReader(`
width: 100
height: 100
seed: 11
spacing: 5
strokes:
  - points: [{x: 0, y: 10}, {x: 100, y: 10}]
  - points: [{x: 0, y: 30}, {x: 100, y: 30}]
    leave: true
  - points: [{x: 0, y: 50}, {x: 100, y: 50}]
  - points: [{x: 0, y: 70}, {x: 100, y: 70}]
  - points: [{x: 0, y: 90}, {x: 100, y: 90}]
  - points: [{x: 50, y: 50}]
`))
	require.NoError(t, err)

	result, err := Replay(script, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, result.Strokes, 6)
	assert.Equal(t, 21, result.Strokes[0].Moves)
	assert.Equal(t, 1, result.Reveals)
	require.GreaterOrEqual(t, result.RevealedAtStroke, 0)
	assert.True(t, result.Strokes[len(result.Strokes)-1].Revealed)

	for i := 1; i < len(result.Strokes); i++ {
		assert.GreaterOrEqual(t, result.Strokes[i].Progress, result.Strokes[i-1].Progress)
	}
}

func TestLoadScriptRejectsBadInput(t *testing.T) {
	_, err := LoadScript(strings.NewReader("width: 0\nheight: 10\n"))
	assert.Error(t, err)

	_, err = LoadScript(strings.NewReader("width: 10\nheight: 10\nspacing: -1\n"))
	assert.Error(t, err)

	_, err = LoadScript(strings.NewReader("width: 10\nheight: 10\nunknown: true\n"))
	assert.Error(t, err)
}

func TestInterpolate(t *testing.T) {
	points := interpolate([]Point{{0, 0}, {10, 0}}, 2.5)
	require.Len(t, points, 5)
	assert.Equal(t, Point{X: 10, Y: 0}, points[4])

	assert.Len(t, interpolate([]Point{{0, 0}, {0, 0}}, 1), 2)
	assert.Len(t, interpolate([]Point{{1, 1}}, 1), 1)
}

func TestValidateBoundsScriptSize(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "width over cap", yaml: "width: 8193\nheight: 10\n"},
		{name: "height over cap", yaml: "width: 10\nheight: 100000\n"},
		{name: "nan spacing", yaml: "width: 10\nheight: 10\nspacing: .nan\n"},
		{name: "infinite point", yaml: "width: 10\nheight: 10\nstrokes:\n  - points: [{x: .inf, y: 0}, {x: 1, y: 1}]\n"},
		{name: "tiny spacing", yaml: "width: 10\nheight: 10\nspacing: 0.0000001\nstrokes:\n  - points: [{x: 0, y: 0}, {x: 8000, y: 8000}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScript(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := LoadScript(strings.NewReader("width: 8192\nheight: 8192\nspacing: 1\nstrokes:\n  - points: [{x: 0, y: 0}, {x: 100, y: 0}]\n"))
	assert.NoError(t, err)
}

func TestMoveCountMatchesInterpolate(t *testing.T) {
	cases := [][]Point{
		{{0, 0}, {10, 0}},
		{{0, 0}, {0, 0}, {3, 4}},
		{{1, 1}},
	}
	for _, points := range cases {
		assert.Equal(t, float64(len(interpolate(points, 2.5))), moveCount(points, 2.5))
		assert.Equal(t, float64(len(points)), moveCount(points, 0))
	}
}
