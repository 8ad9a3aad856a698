package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

var (
	versionSuffix = regexp.MustCompile(`-\d+$`)
	latestSuffix  = regexp.MustCompile(`-latest$`)
)

// GeminiProvider serves chat (generateContent text) and image generation
// against the Generative Language API.
type GeminiProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	kind    provider.Kind
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

func NewChat(apiKey string, client *http.Client) provider.Adapter {
	return &GeminiProvider{
		apiKey:  apiKey,
		baseURL: "https://generativelanguage.googleapis.com",
		client:  client,
		kind:    provider.KindChat,
	}
}

func NewImage(apiKey string, client *http.Client) provider.Adapter {
	return &GeminiProvider{
		apiKey:  apiKey,
		baseURL: "https://generativelanguage.googleapis.com",
		client:  client,
		kind:    provider.KindImage,
	}
}

func (p *GeminiProvider) Execute(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if p.kind == provider.KindImage {
		return p.generateImage(ctx, req)
	}
	return p.complete(ctx, req)
}

// generate calls generateContent. A 404 on a bare model name is retried
// exactly once as "<model>-latest"; the second outcome is final. It returns
// the model name that produced the outcome.
func (p *GeminiProvider) generate(ctx context.Context, model string, body map[string]any) (*provider.Response, string, error) {
	resp, err := p.post(ctx, model, body)
	if err == nil {
		return resp, model, nil
	}

	ue, ok := provider.AsUpstreamError(err)
	if !ok || ue.StatusCode != http.StatusNotFound || !aliasable(model) {
		return nil, model, err
	}

	alt := model + "-latest"
	resp, err = p.post(ctx, alt, body)
	return resp, alt, err
}

func (p *GeminiProvider) post(ctx context.Context, model string, body map[string]any) (*provider.Response, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, url.PathEscape(model))
	resp, err := provider.PostJSON(ctx, p.client, p.Name(), endpoint, map[string]string{
		"x-goog-api-key": p.apiKey,
	}, body)
	if err != nil {
		if ue, ok := provider.AsUpstreamError(err); ok {
			ue.Detail = fmt.Sprintf("(%s) %s", model, ue.Detail)
		}
		return nil, err
	}
	resp.Model = model
	return resp, nil
}

// aliasable reports whether model lacks a numeric version or -latest suffix.
func aliasable(model string) bool {
	return !versionSuffix.MatchString(model) && !latestSuffix.MatchString(model)
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Kind() provider.Kind {
	return p.kind
}
