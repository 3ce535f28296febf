package output

import (
	"time"

	"github.com/photofx/photofx/internal/gateway"
	"github.com/photofx/photofx/internal/ratelimit"
	"github.com/photofx/photofx/internal/scratch"
)

type recordJSON struct {
	Identifier string    `json:"identifier"`
	Count      int       `json:"count"`
	ResetAt    time.Time `json:"reset_at"`
	Expired    bool      `json:"expired"`
}

type strokeJSON struct {
	Index    int     `json:"index"`
	Moves    int     `json:"moves"`
	Progress float64 `json:"progress"`
	Revealed bool    `json:"revealed"`
	Sparkles int     `json:"sparkles"`
}

type replayJSON struct {
	Strokes          []strokeJSON `json:"strokes"`
	RevealedAtStroke int          `json:"revealed_at_stroke"`
	Reveals          int          `json:"reveals"`
	FinalProgress    float64      `json:"final_progress"`
	Phase            string       `json:"phase"`
}

type generationJSON struct {
	ImageURL string `json:"imageUrl"`
	Model    string `json:"model,omitempty"`
	Text     string `json:"text,omitempty"`
}

func recordsJSON(records []ratelimit.Record, now time.Time) []recordJSON {
	out := make([]recordJSON, 0, len(records))
	for _, r := range records {
		out = append(out, recordJSON{
			Identifier: r.Identifier,
			Count:      r.Count,
			ResetAt:    r.ResetAt.UTC(),
			Expired:    r.Expired(now),
		})
	}
	return out
}

func replayToJSON(result *scratch.ReplayResult) replayJSON {
	out := replayJSON{
		Strokes:          make([]strokeJSON, 0, len(result.Strokes)),
		RevealedAtStroke: result.RevealedAtStroke,
		Reveals:          result.Reveals,
	}
	for _, s := range result.Strokes {
		out.Strokes = append(out.Strokes, strokeJSON(s))
	}
	if result.Tracker != nil {
		state := result.Tracker.State()
		out.FinalProgress = state.RevealProgress
		out.Phase = state.Phase.String()
	}
	return out
}

func generationToJSON(result *gateway.Result) generationJSON {
	return generationJSON{
		ImageURL: result.ImageURL,
		Model:    result.Model,
		Text:     result.Text,
	}
}
