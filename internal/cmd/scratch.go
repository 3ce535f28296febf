package cmd

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/photofx/photofx/internal/output"
	"github.com/photofx/photofx/internal/scratch"
)

var scratchCmd = &cobra.Command{
	Use:   "scratch",
	Short: "Scratch-to-reveal card tooling",
}

var scratchReplayCmd = &cobra.Command{
	Use:   "replay <script.yaml>",
	Short: "Replay a stroke script against a scratch card",
	Long: `Replay a YAML stroke script against a scratch card and report reveal
progress after every stroke. The run is deterministic for a given script seed.

Use --snapshot to write the remaining cover layer as an image.`,
	Args: cobra.ExactArgs(1),
	RunE: runScratchReplay,
}

func init() {
	scratchCmd.AddCommand(scratchReplayCmd)
	rootCmd.AddCommand(scratchCmd)

	scratchReplayCmd.Flags().Int("radius", scratch.BrushRadius, "Brush radius in pixels")
	scratchReplayCmd.Flags().Float64("threshold", scratch.RevealThreshold, "Reveal threshold in percent")
	scratchReplayCmd.Flags().String("snapshot", "", "Write the final cover layer to this image file")
	scratchReplayCmd.Flags().Int("snapshot-size", 0, "Scale the snapshot so its longest side is at most this many pixels (0 keeps full size)")
	scratchReplayCmd.Flags().String("snapshot-format", "", "Snapshot format: png|jpeg (default from file extension)")
	scratchReplayCmd.Flags().Int("jpeg-quality", 85, "JPEG quality (1-100)")
	scratchReplayCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	scratchReplayCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	scratchReplayCmd.Flags().String("out-dir", "", "Write output to a directory")
}

func runScratchReplay(cmd *cobra.Command, args []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	script, err := scratch.LoadScriptFile(args[0])
	if err != nil {
		return err
	}

	radius, _ := cmd.Flags().GetInt("radius")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	result, err := scratch.Replay(script, time.Unix(0, 0).UTC(),
		scratch.WithRadius(float64(radius)),
		scratch.WithThreshold(threshold),
	)
	if err != nil {
		return err
	}

	if snapshotPath, _ := cmd.Flags().GetString("snapshot"); strings.TrimSpace(snapshotPath) != "" {
		size, _ := cmd.Flags().GetInt("snapshot-size")
		snapshotFormat, _ := cmd.Flags().GetString("snapshot-format")
		quality, _ := cmd.Flags().GetInt("jpeg-quality")
		if err := writeSnapshot(result.Tracker, snapshotPath, size, snapshotFormat, quality); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	stem := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	outPath, err := resolveOutputPath(cmd, format, sanitizeFilename(stem)+".replay")
	if err != nil {
		return err
	}
	rendered, err := output.FormatReplay(format, result)
	if err != nil {
		return err
	}
	return writeRendered(cmd, outPath, rendered)
}

func writeSnapshot(tracker *scratch.Tracker, path string, maxSize int, format string, jpegQuality int) error {
	img := tracker.Snapshot(maxSize)
	if img == nil {
		return fmt.Errorf("card has no cover layer")
	}

	if format == "" {
		format = snapshotFormatFromPath(path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	outFile, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeImage(outFile, img, format, jpegQuality); err != nil {
		_ = outFile.Close()
		return err
	}
	return outFile.Close()
}

func snapshotFormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	default:
		return "png"
	}
}

// encodeImage writes img as png or jpeg. JPEG drops the alpha channel, so
// cleared regions render against black.
func encodeImage(w io.Writer, img image.Image, format string, jpegQuality int) error {
	switch strings.ToLower(format) {
	case "png", "":
		return png.Encode(w, img)
	case "jpeg", "jpg":
		q := jpegQuality
		if q < 1 {
			q = 1
		}
		if q > 100 {
			q = 100
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
