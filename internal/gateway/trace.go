package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sync"
	"time"
)

// TraceEntry is one NDJSON line describing a gateway exchange.
type TraceEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method"`
	Model       string          `json:"model,omitempty"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

// Inline images are replaced by their length so a trace stays readable.
var inlineImage = regexp.MustCompile(`data:([a-zA-Z0-9.+/-]+);base64,([A-Za-z0-9+/=]{64,})`)

func elideInlineImages(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	return inlineImage.ReplaceAllFunc(raw, func(m []byte) []byte {
		sub := inlineImage.FindSubmatch(m)
		return []byte(fmt.Sprintf("data:%s;base64,[%d bytes elided]", sub[1], len(sub[2])))
	})
}

// Tracer serializes entries onto one writer.
type Tracer struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewTracer traces to w. Close closes w.
func NewTracer(w io.WriteCloser) *Tracer {
	return &Tracer{w: w}
}

var (
	tracerMu     sync.Mutex
	activeTracer *Tracer
)

// EnableTracing appends entries for every gateway call to the file at path.
// The returned func disables tracing again.
func EnableTracing(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	tracerMu.Lock()
	previous := activeTracer
	activeTracer = NewTracer(f)
	tracerMu.Unlock()

	_ = previous.Close()
	return DisableTracing, nil
}

// DisableTracing closes the active trace file, if any.
func DisableTracing() {
	tracerMu.Lock()
	t := activeTracer
	activeTracer = nil
	tracerMu.Unlock()

	_ = t.Close()
}

// Trace records entry on the active tracer. It is a no-op when tracing is off.
func Trace(entry TraceEntry) {
	tracerMu.Lock()
	t := activeTracer
	tracerMu.Unlock()

	t.Write(entry)
}

// Write appends entry as one JSON line.
func (t *Tracer) Write(entry TraceEntry) {
	if t == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Response = elideInlineImages(entry.Response)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w != nil {
		_, _ = t.w.Write(append(data, '\n'))
	}
}

// Close closes the underlying writer. Later writes are dropped.
func (t *Tracer) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return nil
	}
	err := t.w.Close()
	t.w = nil
	return err
}
