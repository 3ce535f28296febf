package scratch

import (
	"image"
	"image/color"
	"math/rand/v2"

	"golang.org/x/image/draw"
)

// gradient stops of the metallic foil, top-left to bottom-right
var foilStops = []color.NRGBA{
	{R: 196, G: 196, B: 208, A: 255},
	{R: 232, G: 232, B: 240, A: 255},
	{R: 150, G: 150, B: 168, A: 255},
}

// paintCover fills img with an opaque foil texture: a diagonal gradient, a
// random tint wash and scattered speckles.
func paintCover(img *image.NRGBA, rng *rand.Rand) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	span := float64(w + h - 2)
	if span <= 0 {
		span = 1
	}

	tint := color.NRGBA{
		R: uint8(rng.IntN(256)),
		G: uint8(rng.IntN(256)),
		B: uint8(rng.IntN(256)),
		A: 255,
	}
	tintWeight := 0.08 + rng.Float64()*0.07

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := sampleGradient(float64(x+y) / span)
			c = mix(c, tint, tintWeight)
			img.SetNRGBA(b.Min.X+x, b.Min.Y+y, c)
		}
	}

	speckles := w * h / 60
	for i := 0; i < speckles; i++ {
		x := b.Min.X + rng.IntN(w)
		y := b.Min.Y + rng.IntN(h)
		c := img.NRGBAAt(x, y)
		if rng.IntN(2) == 0 {
			c = mix(c, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, 0.6)
		} else {
			c = mix(c, color.NRGBA{R: 90, G: 90, B: 100, A: 255}, 0.4)
		}
		img.SetNRGBA(x, y, c)
	}
}

func sampleGradient(t float64) color.NRGBA {
	if t <= 0 {
		return foilStops[0]
	}
	if t >= 1 {
		return foilStops[len(foilStops)-1]
	}
	pos := t * float64(len(foilStops)-1)
	i := int(pos)
	return mix(foilStops[i], foilStops[i+1], pos-float64(i))
}

// mix blends b into a by weight w, keeping the cover fully opaque.
func mix(a, b color.NRGBA, w float64) color.NRGBA {
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x)*(1-w) + float64(y)*w + 0.5)
	}
	return color.NRGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}

// Snapshot returns a copy of the covering layer scaled so that neither side
// exceeds maxSize. maxSize <= 0 keeps the original size. It returns nil when
// the tracker has no cover.
func (t *Tracker) Snapshot(maxSize int) *image.NRGBA {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cover == nil {
		return nil
	}

	src := t.cover
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}

	scale := float64(maxSize) / float64(max(w, h))
	dw := max(1, int(float64(w)*scale+0.5))
	dh := max(1, int(float64(h)*scale+0.5))

	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
