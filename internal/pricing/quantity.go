package pricing

import (
	"github.com/vnmchuo/ai-broker/internal/provider"
)

const (
	charsPerToken      = 4
	perMessageOverhead = 4
	perRequestOverhead = 3
)

// QuantityFor extracts the sizing fields of a request.
func QuantityFor(req *provider.Request) Quantity {
	switch req.Kind {
	case provider.KindChat:
		return Quantity{Tokens: EstimateTokens(req.Payload) + int64(max(req.MaxTokens, 0))}
	case provider.KindImage:
		return Quantity{Images: req.Count}
	case provider.KindTTS:
		return Quantity{Seconds: req.Seconds}
	case provider.KindMusic:
		return Quantity{Clips: req.Count}
	}
	return Quantity{}
}

// EstimateTokens approximates prompt tokens from either an OpenAI-style
// "messages" list or a Gemini-style "contents" list: ~4 chars per token plus
// fixed per-message and per-request overhead.
func EstimateTokens(payload map[string]any) int64 {
	total := int64(perRequestOverhead)

	if messages, ok := payload["messages"].([]any); ok {
		for _, raw := range messages {
			m, _ := raw.(map[string]any)
			total += int64(len(provider.Text(m["content"])))/charsPerToken + perMessageOverhead
		}
	}

	if contents, ok := payload["contents"].([]any); ok {
		for _, raw := range contents {
			c, _ := raw.(map[string]any)
			parts, _ := c["parts"].([]any)
			for _, p := range parts {
				part, _ := p.(map[string]any)
				if text, ok := part["text"].(string); ok {
					total += int64(len(text)) / charsPerToken
				}
			}
			total += perMessageOverhead
		}
	}

	return total
}
