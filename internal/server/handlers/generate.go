package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/photofx/photofx/internal/errors"
	"github.com/photofx/photofx/internal/gateway"
	"github.com/photofx/photofx/internal/metrics"
	"github.com/photofx/photofx/internal/observability"
	"github.com/photofx/photofx/internal/prompt"
	"github.com/photofx/photofx/internal/ratelimit"
	servermw "github.com/photofx/photofx/internal/server/middleware"
	"github.com/photofx/photofx/internal/session"
)

// User-facing messages of the generation endpoint.
const (
	MsgAuthRequired       = "Authentication required"
	MsgInvalidSession     = "Invalid session"
	MsgTooManyRequests    = "Too many requests. Please try again later."
	MsgAPIKeyMissing      = "API key not configured"
	MsgAuthNotConfigured  = "Authentication backend not configured"
	MsgUpstreamRateLimit  = "Rate limit exceeded. Please try again later."
	MsgCreditsExhausted   = "API credits exhausted. Please add credits."
	MsgNoImageGenerated   = "No image generated"
	MsgGenerationComplete = "Background generated successfully"
)

const maxGenerateBodyBytes = 64 << 10

// ImageGenerator produces an image from an instruction.
type ImageGenerator interface {
	Configured() bool
	GenerateImage(ctx context.Context, instruction string) (*gateway.Result, error)
}

// GenerateResponse is the success body of the generation endpoint.
type GenerateResponse struct {
	ImageURL string `json:"imageUrl"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
}

type generateRequest struct {
	Prompt any `json:"prompt"`
}

// decodePrompt reads the request body and validates its prompt. A body over
// maxGenerateBodyBytes can only hold an over-long prompt; malformed JSON
// counts as a missing one.
func decodePrompt(w http.ResponseWriter, r *http.Request) prompt.Result {
	var body generateRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBodyBytes)).Decode(&body)
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return prompt.TooLong()
	}
	if err != nil {
		body.Prompt = nil
	}
	return prompt.Validate(body.Prompt)
}

// GenerateHandler authenticates, rate-checks and validates a background request,
// then relays it to the AI gateway.
type GenerateHandler struct {
	Verifier session.Verifier
	Limiter  *ratelimit.Limiter
	Gateway  ImageGenerator
}

// NewGenerateHandler wires the generation endpoint.
func NewGenerateHandler(verifier session.Verifier, limiter *ratelimit.Limiter, gw ImageGenerator) *GenerateHandler {
	return &GenerateHandler{Verifier: verifier, Limiter: limiter, Gateway: gw}
}

// ServeHTTP implements http.Handler.
func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	clientIP := servermw.ClientIP(r)

	fail := func(envelope *errors.ErrorEnvelope, diagnostic string) {
		envelope = apperrors.WithFields(envelope, map[string]interface{}{
			"client_ip":  clientIP,
			"diagnostic": diagnostic,
		})
		metrics.RecordGeneration(envelope.Code, time.Since(start))
		respondFlat(w, r, envelope)
	}

	// Authenticated
	header := r.Header.Get("Authorization")
	if header == "" {
		env, _ := apperrors.NewUnauthorizedError(MsgAuthRequired).WithSeverity(errors.SeverityMedium)
		fail(env, "missing authorization header")
		return
	}
	if h.Verifier == nil {
		env, _ := apperrors.NewConfigInvalidError(MsgAuthNotConfigured).WithSeverity(errors.SeverityHigh)
		fail(env, "no session verifier configured")
		return
	}
	token, err := session.ExtractBearer(header)
	if err == nil {
		_, err = h.Verifier.Verify(ctx, token)
	}
	if err != nil {
		env, _ := apperrors.WrapUnauthorized(ctx, err, MsgInvalidSession).WithSeverity(errors.SeverityMedium)
		fail(env, "session lookup failed")
		return
	}

	// RateChecked
	decision, _ := h.Limiter.Check(ctx, clientIP)
	if !decision.Allowed {
		env, _ := apperrors.NewRateLimitedError(MsgTooManyRequests, decision.RetryAfter).WithSeverity(errors.SeverityMedium)
		fail(env, "rate limit exceeded")
		return
	}

	// Validated
	result := decodePrompt(w, r)
	if !result.Valid {
		env, _ := apperrors.NewInvalidInputError(result.Error).WithSeverity(errors.SeverityMedium)
		fail(env, "prompt "+string(result.Kind))
		return
	}

	// Forwarded
	if h.Gateway == nil || !h.Gateway.Configured() {
		env, _ := apperrors.NewConfigInvalidError(MsgAPIKeyMissing).WithSeverity(errors.SeverityCritical)
		fail(env, "gateway api key missing")
		return
	}

	generated, err := h.Gateway.GenerateImage(ctx, prompt.BuildInstruction(result.Sanitized))
	if err != nil {
		env, diagnostic := classifyGatewayError(ctx, err)
		fail(env, diagnostic)
		return
	}

	// Responded
	metrics.RecordGeneration("success", time.Since(start))
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Background generated",
			zap.String("client_ip", clientIP),
			zap.Int("prompt_length", len([]rune(result.Sanitized))),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", servermw.GetRequestID(ctx)))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(GenerateResponse{
		ImageURL: generated.ImageURL,
		Success:  true,
		Message:  MsgGenerationComplete,
	})
}

// classifyGatewayError maps a gateway failure to the envelope returned to the caller.
func classifyGatewayError(ctx context.Context, err error) (*errors.ErrorEnvelope, string) {
	if pe, ok := gateway.AsProviderError(err); ok {
		switch {
		case pe.RateLimited():
			env, _ := apperrors.WrapUpstreamRateLimited(ctx, err, MsgUpstreamRateLimit).WithSeverity(errors.SeverityMedium)
			return env, "gateway rate limited"
		case pe.QuotaExhausted():
			env, _ := apperrors.WrapQuotaExhausted(ctx, err, MsgCreditsExhausted).WithSeverity(errors.SeverityHigh)
			return env, "gateway credits exhausted"
		default:
			env, _ := apperrors.WrapUpstream(ctx, err, pe.Error()).WithSeverity(errors.SeverityHigh)
			return env, "gateway returned " + http.StatusText(pe.StatusCode)
		}
	}

	if stderrors.Is(err, gateway.ErrNoImage) {
		env, _ := apperrors.NewNoImageGeneratedError(MsgNoImageGenerated).WithSeverity(errors.SeverityHigh)
		return env, "gateway response had no image"
	}

	env, _ := apperrors.WrapUpstream(ctx, err, err.Error()).WithSeverity(errors.SeverityHigh)
	return env, "gateway call failed"
}
