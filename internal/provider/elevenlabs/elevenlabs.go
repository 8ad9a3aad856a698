package elevenlabs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

const DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

// ElevenLabsProvider performs text-to-speech; the upstream answers with
// audio bytes which are forwarded untouched.
type ElevenLabsProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func New(apiKey string, client *http.Client) provider.Adapter {
	return &ElevenLabsProvider{
		apiKey:  apiKey,
		baseURL: "https://api.elevenlabs.io/v1",
		client:  client,
	}
}

func (p *ElevenLabsProvider) Execute(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	voice := req.VoiceID
	if voice == "" {
		voice = DefaultVoiceID
	}

	body := provider.ClonePayload(req.Payload)
	if req.Model != "" {
		body["model_id"] = req.Model
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", p.baseURL, url.PathEscape(voice))
	resp, err := provider.PostJSON(ctx, p.client, p.Name(), endpoint, map[string]string{
		"xi-api-key": p.apiKey,
		"Accept":     "audio/mpeg",
	}, body)
	if err != nil {
		return nil, err
	}
	resp.Model = req.Model
	return resp, nil
}

func (p *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

func (p *ElevenLabsProvider) Kind() provider.Kind {
	return provider.KindTTS
}
