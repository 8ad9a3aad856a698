// Package music forwards music generation requests to providers that take a
// bearer-authenticated JSON body and return the clip as-is.
package music

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

// MusicProvider is one music upstream. Stability and Suno differ only in
// name and endpoint.
type MusicProvider struct {
	name    string
	apiKey  string
	baseURL string
	path    string
	client  *http.Client
}

// NewStability generates music through Stable Audio.
func NewStability(apiKey string, client *http.Client) provider.Adapter {
	return &MusicProvider{
		name:    "stability",
		apiKey:  apiKey,
		baseURL: "https://api.stability.ai",
		path:    "/v2beta/music/generate",
		client:  client,
	}
}

// NewSuno generates music through a Suno-compatible endpoint.
func NewSuno(apiKey string, client *http.Client) provider.Adapter {
	return &MusicProvider{
		name:    "suno",
		apiKey:  apiKey,
		baseURL: "https://api.suno.ai",
		path:    "/generate",
		client:  client,
	}
}

func (p *MusicProvider) Execute(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := provider.ClonePayload(req.Payload)
	if req.Model != "" {
		body["model"] = req.Model
	}

	resp, err := provider.PostJSON(ctx, p.client, p.name, p.baseURL+p.path, map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", p.apiKey),
	}, body)
	if err != nil {
		return nil, err
	}
	resp.Model = req.Model
	return resp, nil
}

func (p *MusicProvider) Name() string {
	return p.name
}

func (p *MusicProvider) Kind() provider.Kind {
	return provider.KindMusic
}
