package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/photofx/photofx/internal/gateway"
	"github.com/photofx/photofx/internal/ratelimit"
	"github.com/photofx/photofx/internal/scratch"
)

func recordsMarkdown(records []ratelimit.Record, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("## Rate limits\n\n")
	sb.WriteString("| Client | Count | Resets | State |\n")
	sb.WriteString("|--------|-------|--------|-------|\n")
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n",
			escapeMarkdownCell(r.Identifier),
			r.Count,
			resetLabel(r, now),
			stateLabel(r, now),
		))
	}
	return sb.String()
}

func replayMarkdown(result *scratch.ReplayResult) string {
	var sb strings.Builder
	sb.WriteString("## Scratch replay\n\n")
	sb.WriteString("| Stroke | Moves | Progress | Sparkles | Revealed |\n")
	sb.WriteString("|--------|-------|----------|----------|----------|\n")
	for _, s := range result.Strokes {
		sb.WriteString(fmt.Sprintf("| %d | %d | %s | %d | %s |\n",
			s.Index, s.Moves, progressLabel(s.Progress), s.Sparkles, yesNo(s.Revealed)))
	}
	sb.WriteString(fmt.Sprintf("\n**Result**: %s\n", revealSummary(result)))
	return sb.String()
}

func generationMarkdown(result *gateway.Result) string {
	var sb strings.Builder
	sb.WriteString("## Generated background\n\n")
	if result.Model != "" {
		sb.WriteString(fmt.Sprintf("- **Model**: %s\n", result.Model))
	}
	sb.WriteString(fmt.Sprintf("- **Image**: %s\n", truncate(result.ImageURL, 120)))
	if result.Text != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", result.Text))
	}
	return sb.String()
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
