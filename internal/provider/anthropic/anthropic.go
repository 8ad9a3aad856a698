package anthropic

import (
	"context"
	"net/http"
	"strings"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 1024
)

type AnthropicProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func New(apiKey string, client *http.Client) provider.Adapter {
	return &AnthropicProvider{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com/v1",
		client:  client,
	}
}

func (p *AnthropicProvider) Execute(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := p.mapRequest(req)

	resp, err := provider.PostJSON(ctx, p.client, p.Name(), p.baseURL+"/messages", map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": apiVersion,
	}, body)
	if err != nil {
		return nil, err
	}
	resp.Model = req.Model
	return resp, nil
}

// mapRequest lifts system-role messages into the top-level "system" field,
// which the messages API requires, and fills in max_tokens.
func (p *AnthropicProvider) mapRequest(req *provider.Request) map[string]any {
	body := provider.ClonePayload(req.Payload)
	if req.Model != "" {
		body["model"] = req.Model
	}
	if _, ok := body["max_tokens"]; !ok {
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = defaultMaxTokens
		}
		body["max_tokens"] = maxTokens
	}

	messages, ok := body["messages"].([]any)
	if !ok {
		return body
	}

	var system []string
	kept := make([]any, 0, len(messages))
	for _, raw := range messages {
		m, ok := raw.(map[string]any)
		if ok && m["role"] == "system" {
			system = append(system, provider.Text(m["content"]))
			continue
		}
		kept = append(kept, raw)
	}
	body["messages"] = kept

	if len(system) > 0 {
		if existing, ok := body["system"].(string); ok && existing != "" {
			system = append([]string{existing}, system...)
		}
		body["system"] = strings.Join(system, "\n\n")
	}
	return body
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Kind() provider.Kind {
	return provider.KindChat
}
