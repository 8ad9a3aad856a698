package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

// OpenAIProvider serves both chat completions and image generation; the
// payload is forwarded verbatim apart from the resolved model.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	kind    provider.Kind
}

func NewChat(apiKey string, client *http.Client) provider.Adapter {
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
		client:  client,
		kind:    provider.KindChat,
	}
}

func NewImage(apiKey string, client *http.Client) provider.Adapter {
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: "https://api.openai.com/v1",
		client:  client,
		kind:    provider.KindImage,
	}
}

func (p *OpenAIProvider) Execute(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := provider.ClonePayload(req.Payload)
	if req.Model != "" {
		body["model"] = req.Model
	}

	path := "/chat/completions"
	if p.kind == provider.KindImage {
		path = "/images/generations"
	}

	resp, err := provider.PostJSON(ctx, p.client, p.Name(), p.baseURL+path, map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", p.apiKey),
	}, body)
	if err != nil {
		return nil, err
	}
	resp.Model = req.Model
	return resp, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Kind() provider.Kind {
	return p.kind
}
