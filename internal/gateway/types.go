package gateway

import (
	"encoding/json"
	"strings"
)

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Modalities []string      `json:"modalities"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id,omitempty"`
	Model   string       `json:"model,omitempty"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message struct {
		Role    string      `json:"role"`
		Content json.RawMessage `json:"content"`
		Images  []chatImage     `json:"images"`
	} `json:"message"`
}

type chatImage struct {
	Type     string `json:"type"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// result extracts choices[0].message.images[0].image_url.url.
func (r *chatResponse) result() (*Result, error) {
	if r == nil || len(r.Choices) == 0 {
		return nil, ErrNoImage
	}
	msg := r.Choices[0].Message
	if len(msg.Images) == 0 || strings.TrimSpace(msg.Images[0].ImageURL.URL) == "" {
		return nil, ErrNoImage
	}
	return &Result{
		ImageURL: msg.Images[0].ImageURL.URL,
		Text:     contentText(msg.Content),
		Model:    r.Model,
	}, nil
}

// contentText flattens message content, which is either a string or an array
// of typed parts. Only text parts contribute.
func contentText(raw json.RawMessage) string {
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return text
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if json.Unmarshal(raw, &parts) != nil {
		return ""
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
