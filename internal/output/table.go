package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/photofx/photofx/internal/gateway"
	"github.com/photofx/photofx/internal/ratelimit"
	"github.com/photofx/photofx/internal/scratch"
)

// FormatRecords renders stored rate limit records.
func FormatRecords(format Format, records []ratelimit.Record, now time.Time) (string, error) {
	switch format {
	case FormatJSON:
		return renderJSON(recordsJSON(records, now))
	case FormatMarkdown:
		return recordsMarkdown(records, now), nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Client", "Count", "Resets", "State"})
	for _, r := range records {
		t.AppendRow(table.Row{r.Identifier, r.Count, resetLabel(r, now), stateLabel(r, now)})
	}
	if len(records) == 0 {
		t.AppendRow(table.Row{"(no stored rate limit state)", "", "", ""})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d client(s)", len(records))})
	return t.Render(), nil
}

// FormatReplay renders the per-stroke progress of a scratch replay.
func FormatReplay(format Format, result *scratch.ReplayResult) (string, error) {
	if result == nil {
		return "", nil
	}
	switch format {
	case FormatJSON:
		return renderJSON(replayToJSON(result))
	case FormatMarkdown:
		return replayMarkdown(result), nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Stroke", "Moves", "Progress", "Sparkles", "Revealed"})
	for _, s := range result.Strokes {
		t.AppendRow(table.Row{s.Index, s.Moves, progressLabel(s.Progress), s.Sparkles, yesNo(s.Revealed)})
	}
	t.AppendFooter(table.Row{"", "", "", "", revealSummary(result)})
	return t.Render(), nil
}

// FormatGeneration renders a generated background.
func FormatGeneration(format Format, result *gateway.Result) (string, error) {
	if result == nil {
		return "", nil
	}
	switch format {
	case FormatJSON:
		return renderJSON(generationToJSON(result))
	case FormatMarkdown:
		return generationMarkdown(result), nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"Model", result.Model})
	t.AppendRow(table.Row{"Image", truncate(result.ImageURL, 72)})
	if result.Text != "" {
		t.AppendRow(table.Row{"Text", truncate(result.Text, 72)})
	}
	return t.Render(), nil
}

func resetLabel(r ratelimit.Record, now time.Time) string {
	if r.Expired(now) {
		return "-"
	}
	return fmt.Sprintf("in %s", r.ResetAt.Sub(now).Round(time.Second))
}

func stateLabel(r ratelimit.Record, now time.Time) string {
	if r.Expired(now) {
		return "expired"
	}
	return "active"
}

func progressLabel(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func revealSummary(result *scratch.ReplayResult) string {
	if result.RevealedAtStroke < 0 {
		return "not revealed"
	}
	return fmt.Sprintf("revealed at stroke %d", result.RevealedAtStroke)
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-3]) + "..."
}
