package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/photofx/photofx/internal/output"
)

const maxFilenameStem = 48

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

// sanitizeFilename turns free text into a short, lower-case file stem.
func sanitizeFilename(value string) string {
	clean := nonFilename.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	clean = strings.Trim(clean, "-.")
	if len(clean) > maxFilenameStem {
		clean = strings.Trim(clean[:maxFilenameStem], "-.")
	}
	if clean == "" {
		return "output"
	}
	return clean
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

// resolveOutputPath returns where a command's report goes: the --out path,
// <out-dir>/<stem>.<ext>, or "" for stdout.
func resolveOutputPath(cmd *cobra.Command, format output.Format, stem string) (string, error) {
	outPath, _ := cmd.Flags().GetString("out")
	outDir, _ := cmd.Flags().GetString("out-dir")
	outPath, outDir = strings.TrimSpace(outPath), strings.TrimSpace(outDir)

	switch {
	case outPath != "" && outDir != "":
		return "", fmt.Errorf("--out and --out-dir are mutually exclusive")
	case outDir != "":
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
		return filepath.Join(outDir, fmt.Sprintf("%s.%s", stem, format.Extension())), nil
	default:
		return outPath, nil
	}
}

// outputSink is a report destination. File sinks write to a temp file that
// Commit renames into place, so a failed command never leaves a partial report.
type outputSink struct {
	io.Writer
	file *os.File
	path string
}

func openSink(cmd *cobra.Command, path string) (*outputSink, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return &outputSink{Writer: cmd.OutOrStdout(), path: "-"}, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, err
	}
	return &outputSink{Writer: tmp, file: tmp, path: path}, nil
}

// Commit publishes the report.
func (s *outputSink) Commit() error {
	if s.file == nil {
		return nil
	}
	tmp := s.file
	s.file = nil
	_ = tmp.Chmod(0o644)
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Abort drops an uncommitted report. It is a no-op after Commit.
func (s *outputSink) Abort() {
	if s.file == nil {
		return
	}
	_ = s.file.Close()
	_ = os.Remove(s.file.Name())
	s.file = nil
}

// writeRendered writes rendered plus a trailing newline to path (stdout when empty).
func writeRendered(cmd *cobra.Command, path, rendered string) error {
	sink, err := openSink(cmd, path)
	if err != nil {
		return err
	}
	defer sink.Abort()

	if _, err := fmt.Fprintln(sink, rendered); err != nil {
		return err
	}
	return sink.Commit()
}
