package proxy

import (
	"fmt"
	"math"
	"strings"

	"github.com/vnmchuo/ai-broker/internal/dispatch"
	"github.com/vnmchuo/ai-broker/internal/provider"
	"github.com/vnmchuo/ai-broker/internal/provider/elevenlabs"
)

// gatewayFields are consumed here and never forwarded upstream.
var gatewayFields = []string{"provider", "model", "voiceId", "estimateSeconds", "clips", "endpoint"}

var defaultProvider = map[provider.Kind]string{
	provider.KindChat:  "openai",
	provider.KindImage: "openai",
	provider.KindTTS:   "elevenlabs",
	provider.KindMusic: "stability",
}

// Gemini rewrites gpt-* to its own default, so the OpenAI default is safe there.
var defaultChatModel = map[string]string{
	"openai":    "gpt-4o-mini",
	"gemini":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-20241022",
}

const (
	defaultTTSSeconds = 10
	maxTTSSeconds     = 3600
)

// buildRequest turns a decoded JSON body into a provider-agnostic request.
func buildRequest(kind provider.Kind, body map[string]any) (*provider.Request, error) {
	req := &provider.Request{
		Kind:     kind,
		Provider: strings.ToLower(str(body["provider"])),
		Model:    str(body["model"]),
		Payload:  provider.ClonePayload(body, gatewayFields...),
	}
	if req.Provider == "" {
		req.Provider = defaultProvider[kind]
	}

	var err error
	switch kind {
	case provider.KindChat:
		if req.Model == "" {
			req.Model = defaultChatModel[req.Provider]
		}
		req.MaxTokens, err = intField(body, "max_tokens", 0)

	case provider.KindImage:
		req.Count, err = intField(body, "n", 1)

	case provider.KindTTS:
		if req.Model == "" {
			req.Model = str(body["model_id"])
		}
		delete(req.Payload, "model_id")
		req.VoiceID = str(body["voiceId"])
		if req.VoiceID == "" {
			req.VoiceID = elevenlabs.DefaultVoiceID
		}
		req.Seconds, err = floatField(body, "estimateSeconds", defaultTTSSeconds)
		if err == nil && req.Seconds > maxTTSSeconds {
			err = fmt.Errorf("%w: estimateSeconds must not exceed %d", dispatch.ErrInvalidRequest, maxTTSSeconds)
		}

	case provider.KindMusic:
		req.Count, err = intField(body, "clips", 1)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// floatField reads a non-negative number; missing or zero means fallback.
func floatField(body map[string]any, key string, fallback float64) (float64, error) {
	raw, ok := body[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	f, ok := raw.(float64)
	if !ok || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s must be a non-negative number", dispatch.ErrInvalidRequest, key)
	}
	if f == 0 {
		return fallback, nil
	}
	return f, nil
}

func intField(body map[string]any, key string, fallback int) (int, error) {
	f, err := floatField(body, key, float64(fallback))
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer", dispatch.ErrInvalidRequest, key)
	}
	return int(f), nil
}
