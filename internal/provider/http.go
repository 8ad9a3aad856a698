package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxDetailBytes = 2048

// maxResponseBytes caps an upstream body; larger bodies fail the call.
var maxResponseBytes = 64 << 20

// PostJSON sends body as JSON and classifies the outcome: any non-2xx status
// or transport failure becomes an *UpstreamError for provider name.
func PostJSON(ctx context.Context, client *http.Client, name, url string, headers map[string]string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &UpstreamError{Provider: name, Detail: fmt.Sprintf("encode request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &UpstreamError{Provider: name, Detail: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Provider: name, Detail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxResponseBytes)+1))
	if err != nil {
		return nil, &UpstreamError{Provider: name, StatusCode: resp.StatusCode, Detail: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := respBody
		if len(detail) > maxDetailBytes {
			detail = detail[:maxDetailBytes]
		}
		return nil, &UpstreamError{Provider: name, StatusCode: resp.StatusCode, Detail: string(detail)}
	}

	if len(respBody) > maxResponseBytes {
		return nil, &UpstreamError{Provider: name, StatusCode: http.StatusBadGateway, Detail: fmt.Sprintf("response exceeds %d bytes", maxResponseBytes)}
	}

	return &Response{
		Provider:    name,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
		LatencyMs:   time.Since(start).Milliseconds(),
	}, nil
}
