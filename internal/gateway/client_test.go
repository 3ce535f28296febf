package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const imageResponse = `{
  "model": "google/gemini-2.5-flash-image-preview",
  "choices": [{
    "message": {
      "role": "assistant",
      "content": "Here is your background.",
      "images": [{"type": "image_url", "image_url": {"url": "data:image/png;base64,AAAA"}}]
    }
  }]
}`

func TestGenerateImage_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, _ := io.ReadAll(r.Body)
		var payload chatRequest
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, DefaultModel, payload.Model)
		assert.Equal(t, []string{"image", "text"}, payload.Modalities)
		require.Len(t, payload.Messages, 1)
		assert.Equal(t, "user", payload.Messages[0].Role)
		assert.Equal(t, "a sunny beach", payload.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(imageResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1", "test-key")
	res, err := c.GenerateImage(context.Background(), "a sunny beach")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", res.ImageURL)
	assert.Equal(t, "Here is your background.", res.Text)
}

func TestGenerateImage_ContentParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{
			"content":[{"type":"text","text":"Here is"},{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":"your background."}],
			"images":[{"type":"image_url","image_url":{"url":"data:image/png;base64,BBBB"}}]}}]}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "test-key").GenerateImage(context.Background(), "a sunny beach")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,BBBB", res.ImageURL)
	assert.Equal(t, "Here is\nyour background.", res.Text)
}

func TestContentText(t *testing.T) {
	assert.Equal(t, "plain", contentText(json.RawMessage(`"plain"`)))
	assert.Equal(t, "", contentText(json.RawMessage(`null`)))
	assert.Equal(t, "", contentText(nil))
	assert.Equal(t, "", contentText(json.RawMessage(`{"type":"text"}`)))
}

func TestGenerateImage_NoImage(t *testing.T) {
	bodies := []string{
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":"sorry"}}]}`,
		`{"choices":[{"message":{"images":[{"image_url":{"url":""}}]}}]}`,
	}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		_, err := NewClient(srv.URL, "k").GenerateImage(context.Background(), "x")
		assert.ErrorIs(t, err, ErrNoImage, body)
		srv.Close()
	}
}

func TestGenerateImage_ProviderErrors(t *testing.T) {
	tests := []struct {
		status    int
		rateLimit bool
		quota     bool
		message   string
	}{
		{status: http.StatusTooManyRequests, rateLimit: true, message: "AI gateway error: 429"},
		{status: http.StatusPaymentRequired, quota: true, message: "AI gateway error: 402"},
		{status: http.StatusInternalServerError, message: "AI gateway error: 500"},
		{status: http.StatusBadRequest, message: "AI gateway error: 400"},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		_, err := NewClient(srv.URL, "k").GenerateImage(context.Background(), "x")
		srv.Close()

		pe, ok := AsProviderError(err)
		require.True(t, ok)
		assert.Equal(t, tt.status, pe.StatusCode)
		assert.Equal(t, tt.rateLimit, pe.RateLimited())
		assert.Equal(t, tt.quota, pe.QuotaExhausted())
		assert.Equal(t, tt.message, err.Error())
		assert.Equal(t, `{"error":"nope"}`, pe.Message)
	}
}

func TestGenerateImage_MissingKey(t *testing.T) {
	_, err := NewClient("", "  ").GenerateImage(context.Background(), "x")
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestGenerateImage_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "k").GenerateImage(context.Background(), "x")
	require.Error(t, err)
	_, isProvider := AsProviderError(err)
	assert.False(t, isProvider)
}

func TestGenerateImage_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, "k", WithTimeout(50*time.Millisecond)).GenerateImage(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGenerateImage_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").GenerateImage(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestNewClient_Options(t *testing.T) {
	c := NewClient("", "k", WithModel("custom/model"), WithRateLimit(2, 0), WithTimeout(time.Second))
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
	assert.Equal(t, "custom/model", c.Model)
	require.NotNil(t, c.Limiter)
	assert.Equal(t, 1, c.Limiter.Burst())
	assert.Equal(t, time.Second, c.Timeout)

	c = NewClient("", "k", WithModel("  "), WithRateLimit(0, 5))
	assert.Equal(t, DefaultModel, c.Model)
	assert.Nil(t, c.Limiter)
}

func TestGenerateImage_PacingHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(imageResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", WithRateLimit(0.001, 1))
	_, err := c.GenerateImage(context.Background(), "x")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.GenerateImage(ctx, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway pacing")
}

func TestTracing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(imageResponse))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "trace.ndjson")
	cleanup, err := EnableTracing(path)
	require.NoError(t, err)

	_, err = NewClient(srv.URL, "secret-key").GenerateImage(context.Background(), "a forest")
	require.NoError(t, err)
	cleanup()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() // nolint:errcheck

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var entry TraceEntry
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, http.StatusOK, entry.StatusCode)
	assert.Equal(t, DefaultModel, entry.Model)
	assert.Contains(t, string(entry.RequestBody), "a forest")
	assert.NotContains(t, scanner.Text(), "secret-key")
	assert.False(t, scanner.Scan())
}

func TestTracerElidesInlineImages(t *testing.T) {
	payload := strings.Repeat("QUJD", 40)
	var buf closingBuffer
	tracer := NewTracer(&buf)

	tracer.Write(TraceEntry{
		Endpoint: "https://gateway.test/v1/chat/completions",
		Method:   http.MethodPost,
		Response: json.RawMessage(`{"url":"data:image/png;base64,` + payload + `"}`),
	})
	require.NoError(t, tracer.Close())
	tracer.Write(TraceEntry{Endpoint: "dropped"})

	line := buf.String()
	assert.NotContains(t, line, payload)
	assert.Contains(t, line, "data:image/png;base64,[160 bytes elided]")
	assert.NotContains(t, line, "dropped")
	assert.True(t, buf.closed)
}

type closingBuffer struct {
	strings.Builder
	closed bool
}

func (b *closingBuffer) Close() error {
	b.closed = true
	return nil
}
