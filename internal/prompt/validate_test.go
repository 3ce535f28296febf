package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsNonString(t *testing.T) {
	for _, raw := range []any{nil, 42, true, map[string]any{"text": "hello"}} {
		result := Validate(raw)
		require.False(t, result.Valid)
		require.Equal(t, KindInvalidType, result.Kind)
		require.Empty(t, result.Sanitized)
	}
}

func TestValidateTooShort(t *testing.T) {
	for _, raw := range []string{"", "ab", "   ab   ", "\t\n"} {
		result := Validate(raw)
		require.False(t, result.Valid, "input %q", raw)
		require.Equal(t, KindTooShort, result.Kind)
		require.Contains(t, result.Error, "at least 3")
	}
}

func TestValidateTooLong(t *testing.T) {
	result := Validate(strings.Repeat("a", 501))
	require.False(t, result.Valid)
	require.Equal(t, KindTooLong, result.Kind)
	require.Contains(t, result.Error, "less than 500")
}

func TestValidateBoundaries(t *testing.T) {
	require.True(t, Validate("abc").Valid)
	require.True(t, Validate(strings.Repeat("a", 500)).Valid)
	// Length is measured after trimming.
	require.True(t, Validate("  "+strings.Repeat("a", 500)+"  ").Valid)
	// Multi-byte characters count once.
	require.True(t, Validate(strings.Repeat("é", 500)).Valid)
}

func TestValidateCollapsesWhitespace(t *testing.T) {
	result := Validate("  hello   world  ")
	require.True(t, result.Valid)
	require.Equal(t, "hello world", result.Sanitized)

	result = Validate("sunset\n\tover   the\r\nsea")
	require.True(t, result.Valid)
	require.Equal(t, "sunset over the sea", result.Sanitized)
}

func TestValidateCollapsesUnicodeWhitespace(t *testing.T) {
	for _, raw := range []string{
		"hello\u00a0\u00a0world",
		"hello\v\vworld",
		"hello\u3000\u3000world",
		"hello \u00a0\v\u2003 world",
	} {
		result := Validate(raw)
		require.True(t, result.Valid, "input %q", raw)
		require.Equal(t, "hello world", result.Sanitized, "input %q", raw)
	}
}

func TestTooLongMatchesValidate(t *testing.T) {
	require.Equal(t, Validate(strings.Repeat("a", MaxLength+1)), TooLong())
}

func TestValidateStripsDeniedCharacters(t *testing.T) {
	result := Validate("<script>{bad}</script>")
	require.True(t, result.Valid)
	require.Equal(t, "scriptbad/script", result.Sanitized)
	require.NotContainsf(t, result.Sanitized, "<", "sanitized %q", result.Sanitized)
	for _, ch := range []string{"<", ">", "{", "}"} {
		require.NotContains(t, result.Sanitized, ch)
	}
}

func TestBuildInstructionEmbedsPrompt(t *testing.T) {
	instruction := BuildInstruction("misty forest")
	require.Contains(t, instruction, "misty forest")
	require.Contains(t, instruction, "photorealistic")
	require.Contains(t, instruction, "high-resolution")
}
