package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BackendVerifier validates tokens against the managed backend's auth API
// (GET {BaseURL}/auth/v1/user).
type BackendVerifier struct {
	BaseURL    string
	AnonKey    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewBackendVerifier returns a verifier for the backend at baseURL.
func NewBackendVerifier(baseURL, anonKey string) *BackendVerifier {
	return &BackendVerifier{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		AnonKey: strings.TrimSpace(anonKey),
		Timeout: 10 * time.Second,
	}
}

// Verify implements Verifier.
func (v *BackendVerifier) Verify(ctx context.Context, token string) (*User, error) {
	if v == nil || v.BaseURL == "" {
		return nil, fmt.Errorf("backend verifier not configured: %w", ErrInvalidSession)
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidSession
	}

	if v.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.AnonKey != "" {
		req.Header.Set("apikey", v.AnonKey)
	}

	client := v.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read session response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session lookup returned status %d: %w", resp.StatusCode, ErrInvalidSession)
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	if strings.TrimSpace(user.ID) == "" {
		return nil, ErrInvalidSession
	}

	return &user, nil
}
