package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

const (
	defaultImageModel = "gemini-2.0-flash-preview-image-generation"
	defaultImageMime  = "image/png"
)

var mimeTypeComplaint = regexp.MustCompile(`(?i)response_?mime_?type`)

type imageData struct {
	B64JSON  string `json:"b64_json"`
	MimeType string `json:"mime_type"`
}

type imageResult struct {
	Created int64       `json:"created"`
	Data    []imageData `json:"data"`
	Text    string      `json:"text,omitempty"`
}

func (p *GeminiProvider) generateImage(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := p.mapImageRequest(req)

	resp, model, err := p.generate(ctx, imageModel(req.Model), body)
	if err != nil && rejectsMimeType(err) {
		// Models without image output reject responseMimeType; drop it once.
		resp, err = p.post(ctx, model, withoutMimeType(body))
	}
	if err != nil {
		return nil, err
	}
	return p.normalizeImage(resp)
}

func imageModel(model string) string {
	if model == "" || strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "dall-e") {
		return defaultImageModel
	}
	return model
}

func (p *GeminiProvider) mapImageRequest(req *provider.Request) map[string]any {
	body := map[string]any{}
	if contents, ok := req.Payload["contents"]; ok {
		body["contents"] = contents
	} else {
		prompt, _ := req.Payload["prompt"].(string)
		body["contents"] = []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: prompt}},
		}}
	}

	genCfg := map[string]any{
		"responseModalities": []string{"TEXT", "IMAGE"},
		"responseMimeType":   responseMime(req.Payload["response_format"]),
	}
	if req.Count > 1 {
		genCfg["candidateCount"] = req.Count
	}
	body["generationConfig"] = genCfg
	return body
}

func responseMime(v any) string {
	format, _ := v.(string)
	switch {
	case strings.Contains(format, "/"):
		return format
	case format == "jpeg" || format == "jpg":
		return "image/jpeg"
	default:
		return defaultImageMime
	}
}

func rejectsMimeType(err error) bool {
	ue, ok := provider.AsUpstreamError(err)
	return ok && ue.StatusCode == http.StatusBadRequest && mimeTypeComplaint.MatchString(ue.Detail)
}

func withoutMimeType(body map[string]any) map[string]any {
	out := provider.ClonePayload(body)
	if genCfg, ok := body["generationConfig"].(map[string]any); ok {
		out["generationConfig"] = provider.ClonePayload(genCfg, "responseMimeType")
	}
	return out
}

// normalizeImage reshapes inline image parts into an OpenAI images-style body.
func (p *GeminiProvider) normalizeImage(resp *provider.Response) (*provider.Response, error) {
	var gr geminiResponse
	if err := json.Unmarshal(resp.Body, &gr); err != nil {
		return nil, &provider.UpstreamError{Provider: p.Name(), StatusCode: http.StatusBadGateway, Detail: "decode image response: " + err.Error()}
	}

	result := imageResult{Created: time.Now().Unix()}
	var text []string
	for _, c := range gr.Candidates {
		for _, part := range c.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				result.Data = append(result.Data, imageData{
					B64JSON:  part.InlineData.Data,
					MimeType: part.InlineData.MimeType,
				})
			} else if part.Text != "" {
				text = append(text, part.Text)
			}
		}
	}
	if len(result.Data) == 0 {
		return nil, &provider.UpstreamError{Provider: p.Name(), StatusCode: http.StatusBadGateway, Detail: "gemini returned no image data"}
	}
	result.Text = strings.Join(text, "\n")

	out, err := json.Marshal(result)
	if err != nil {
		return nil, &provider.UpstreamError{Provider: p.Name(), StatusCode: http.StatusBadGateway, Detail: err.Error()}
	}
	resp.Body = out
	resp.ContentType = "application/json"
	return resp, nil
}
