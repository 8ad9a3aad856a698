package gemini

import (
	"context"
	"strings"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

const defaultChatModel = "gemini-1.5-flash"

func (p *GeminiProvider) complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	resp, _, err := p.generate(ctx, chatModel(req.Model), p.mapRequest(req))
	return resp, err
}

// chatModel replaces OpenAI-style defaults, which the Gemini upstream would
// reject, with a valid Gemini model.
func chatModel(model string) string {
	if model == "" || strings.HasPrefix(model, "gpt-") {
		return defaultChatModel
	}
	return model
}

// mapRequest converts an OpenAI-style messages list into Gemini contents.
// A payload that already carries contents is forwarded as-is.
func (p *GeminiProvider) mapRequest(req *provider.Request) map[string]any {
	body := provider.ClonePayload(req.Payload, "model", "stream", "max_tokens", "temperature")

	genCfg := map[string]any{}
	if existing, ok := body["generationConfig"].(map[string]any); ok {
		genCfg = provider.ClonePayload(existing)
	}
	if req.MaxTokens > 0 {
		genCfg["maxOutputTokens"] = req.MaxTokens
	}
	if t, ok := req.Payload["temperature"]; ok {
		genCfg["temperature"] = t
	}
	if len(genCfg) > 0 {
		body["generationConfig"] = genCfg
	}

	if _, ok := body["contents"]; ok {
		delete(body, "messages")
		return body
	}

	messages, ok := body["messages"].([]any)
	if !ok {
		return body
	}
	delete(body, "messages")

	var system []geminiPart
	contents := make([]geminiContent, 0, len(messages))
	for _, raw := range messages {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		text := provider.Text(m["content"])
		switch role {
		case "system":
			system = append(system, geminiPart{Text: text})
			continue
		case "assistant":
			role = "model"
		case "":
			role = "user"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: text}},
		})
	}

	body["contents"] = contents
	if len(system) > 0 {
		body["systemInstruction"] = geminiContent{Parts: system}
	}
	return body
}
