package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the operation kind of an inbound request.
type Kind string

const (
	KindChat  Kind = "chat"
	KindImage Kind = "image"
	KindTTS   Kind = "tts"
	KindMusic Kind = "music"
)

// Request is the provider-agnostic shape handed to an Adapter.
type Request struct {
	Kind     Kind
	Provider string
	Model    string

	// Payload holds the caller's fields that are forwarded to the upstream,
	// with gateway-only fields already removed.
	Payload map[string]any

	// Sizing fields, used for cost estimation only.
	MaxTokens int
	Count     int     // images or clips
	Seconds   float64 // estimated audio length
	VoiceID   string

	RequestID string
}

// Response is an upstream success, forwarded to the caller as-is unless the
// adapter reshaped Body.
type Response struct {
	Provider    string
	Model       string
	StatusCode  int
	ContentType string
	Body        []byte
	LatencyMs   int64
}

// Adapter translates and performs calls against one upstream API for one
// operation kind. Adapters never touch caller credit state.
type Adapter interface {
	Name() string
	Kind() Kind
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// UpstreamError is the only failure an Adapter returns. StatusCode is 0 for
// transport failures.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s upstream error: %s", e.Provider, e.Detail)
	}
	return fmt.Sprintf("%s upstream error (status %d): %s", e.Provider, e.StatusCode, e.Detail)
}

// AsUpstreamError returns the UpstreamError in err's chain, if any.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// ClonePayload returns a shallow copy of p without the given keys.
func ClonePayload(p map[string]any, drop ...string) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range drop {
		delete(out, k)
	}
	return out
}

// Text renders a message content value as plain text: strings pass through,
// anything else is JSON-encoded.
func Text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
