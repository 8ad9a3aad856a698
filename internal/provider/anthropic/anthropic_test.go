package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

func TestExecute_Mock(t *testing.T) {
	var gotKey, gotVersion string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("Expected /messages, got %s", r.URL.Path)
		}
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_123","content":[{"type":"text","text":"Hello from Claude mock!"}]}`))
	}))
	defer server.Close()

	p := &AnthropicProvider{apiKey: "test-key", baseURL: server.URL}

	req := &provider.Request{
		Kind:  provider.KindChat,
		Model: "claude-3-5-sonnet-20241022",
		Payload: map[string]any{
			"messages": []any{
				map[string]any{"role": "system", "content": "be brief"},
				map[string]any{"role": "user", "content": "hi"},
			},
		},
	}

	resp, err := p.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if gotKey != "test-key" || gotVersion != apiVersion {
		t.Errorf("Unexpected auth headers: key=%q version=%q", gotKey, gotVersion)
	}
	if gotBody["system"] != "be brief" {
		t.Errorf("Expected system prompt to be lifted, got %v", gotBody["system"])
	}
	msgs := gotBody["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 remaining message, got %d", len(msgs))
	}
	if gotBody["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("Expected default max_tokens, got %v", gotBody["max_tokens"])
	}
	if resp.Provider != "anthropic" {
		t.Errorf("Expected provider anthropic, got %s", resp.Provider)
	}
}

func TestMapRequest_KeepsCallerMaxTokens(t *testing.T) {
	p := &AnthropicProvider{}
	body := p.mapRequest(&provider.Request{
		Model:   "claude-3-haiku",
		Payload: map[string]any{"max_tokens": 64, "messages": []any{}},
	})
	if body["max_tokens"] != 64 {
		t.Errorf("Expected caller max_tokens to win, got %v", body["max_tokens"])
	}
	if _, ok := body["system"]; ok {
		t.Errorf("Expected no system field without system messages")
	}
}

func TestExecute_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error"}}`))
	}))
	defer server.Close()

	p := &AnthropicProvider{apiKey: "bad", baseURL: server.URL}
	_, err := p.Execute(context.Background(), &provider.Request{Kind: provider.KindChat, Model: "claude-3"})

	ue, ok := provider.AsUpstreamError(err)
	if !ok {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusUnauthorized || ue.Provider != "anthropic" {
		t.Errorf("Unexpected error: %+v", ue)
	}
}
