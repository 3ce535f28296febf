package cmd

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photofx/photofx/internal/scratch"
)

func TestWriteSnapshotScalesCover(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "nested", "cover.png")

	result, err := scratch.Replay(&scratch.Script{
		Width:  400,
		Height: 200,
		Seed:   7,
		Strokes: []scratch.Stroke{
			{Points: []scratch.Point{{X: 0, Y: 100}, {X: 400, Y: 100}}},
		},
		Spacing: 10,
	}, time.Unix(0, 0))
	require.NoError(t, err)

	require.NoError(t, writeSnapshot(result.Tracker, outPath, 100, "", 80))

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close() // nolint:errcheck

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestWriteSnapshotJPEG(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "cover.jpg")
	tracker := scratch.New(64, 64, scratch.WithSeed(1))

	require.NoError(t, writeSnapshot(tracker, outPath, 0, "", 80))

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWriteSnapshotWithoutCover(t *testing.T) {
	tracker := scratch.New(0, 0)
	err := writeSnapshot(tracker, filepath.Join(t.TempDir(), "cover.png"), 0, "png", 80)
	require.Error(t, err)
}

func TestSnapshotFormatFromPath(t *testing.T) {
	assert.Equal(t, "jpeg", snapshotFormatFromPath("out.JPG"))
	assert.Equal(t, "jpeg", snapshotFormatFromPath("out.jpeg"))
	assert.Equal(t, "png", snapshotFormatFromPath("out.png"))
	assert.Equal(t, "png", snapshotFormatFromPath("out"))
}

func TestEncodeImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	var buf bytes.Buffer
	require.NoError(t, encodeImage(&buf, img, "png", 0))
	assert.NotZero(t, buf.Len())

	buf.Reset()
	require.NoError(t, encodeImage(&buf, img, "JPEG", 500))
	assert.NotZero(t, buf.Len())

	require.Error(t, encodeImage(&buf, img, "gif", 80))
}
