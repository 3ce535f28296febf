// Package prompt validates and sanitizes user prompts before they are forwarded to the
// image generation gateway.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MinLength is the minimum trimmed prompt length in characters.
	MinLength = 3
	// MaxLength is the maximum trimmed prompt length in characters.
	MaxLength = 500
)

// Kind classifies a validation failure.
type Kind string

const (
	KindInvalidType Kind = "invalid_type"
	KindTooShort    Kind = "too_short"
	KindTooLong     Kind = "too_long"
)

// Result is the outcome of Validate. Sanitized is set only when Valid is true.
type Result struct {
	Valid     bool
	Kind      Kind
	Error     string
	Sanitized string
}

var stripped = strings.NewReplacer("<", "", ">", "", "{", "", "}", "")

// Validate checks raw (typically a decoded JSON value) and returns the sanitized prompt.
//
// The character denylist only removes <, >, { and }. It is not an injection defense.
func Validate(raw any) Result {
	text, ok := raw.(string)
	if !ok {
		return Result{Kind: KindInvalidType, Error: "Prompt is required and must be a string"}
	}

	trimmed := strings.TrimSpace(text)
	length := utf8.RuneCountInString(trimmed)
	if length < MinLength {
		return Result{Kind: KindTooShort, Error: fmt.Sprintf("Prompt must be at least %d characters", MinLength)}
	}
	if length > MaxLength {
		return TooLong()
	}

	return Result{Valid: true, Sanitized: Sanitize(trimmed)}
}

// TooLong is the result for a prompt over MaxLength characters. Callers that
// reject a body before decoding it report this too.
func TooLong() Result {
	return Result{Kind: KindTooLong, Error: fmt.Sprintf("Prompt must be less than %d characters", MaxLength)}
}

// Sanitize collapses Unicode whitespace runs to a single space and strips
// <, >, { and }.
func Sanitize(text string) string {
	return stripped.Replace(strings.Join(strings.Fields(text), " "))
}
