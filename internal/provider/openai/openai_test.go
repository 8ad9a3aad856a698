package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

func TestExecute_ChatForwardsPayload(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","choices":[{"message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer server.Close()

	p := &OpenAIProvider{apiKey: "test-key", baseURL: server.URL, kind: provider.KindChat}

	resp, err := p.Execute(context.Background(), &provider.Request{
		Kind:  provider.KindChat,
		Model: "gpt-4o-mini",
		Payload: map[string]any{
			"messages":    []any{map[string]any{"role": "user", "content": "hello"}},
			"temperature": 0.2,
		},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if gotPath != "/chat/completions" {
		t.Errorf("Expected /chat/completions, got %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini, got %v", gotBody["model"])
	}
	if gotBody["temperature"] != 0.2 {
		t.Errorf("Expected temperature to be forwarded, got %v", gotBody["temperature"])
	}
	if resp.StatusCode != http.StatusOK || resp.ContentType != "application/json" {
		t.Errorf("Unexpected response meta: %d %s", resp.StatusCode, resp.ContentType)
	}
	if string(resp.Body) != `{"id":"chatcmpl-1","choices":[{"message":{"role":"assistant","content":"hi"}}]}` {
		t.Errorf("Body was not forwarded unmodified: %s", resp.Body)
	}
}

func TestExecute_ImageUsesGenerationsPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	p := &OpenAIProvider{apiKey: "k", baseURL: server.URL, kind: provider.KindImage}
	_, err := p.Execute(context.Background(), &provider.Request{
		Kind:    provider.KindImage,
		Model:   "dall-e-3",
		Payload: map[string]any{"prompt": "a cat", "n": 2},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if gotPath != "/images/generations" {
		t.Errorf("Expected /images/generations, got %s", gotPath)
	}
}

func TestExecute_NonSuccessIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer server.Close()

	p := &OpenAIProvider{apiKey: "k", baseURL: server.URL, kind: provider.KindChat}
	_, err := p.Execute(context.Background(), &provider.Request{Kind: provider.KindChat, Model: "gpt-4o"})

	ue, ok := provider.AsUpstreamError(err)
	if !ok {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if ue.Provider != "openai" || ue.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Unexpected error fields: %+v", ue)
	}
}

func TestExecute_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := &OpenAIProvider{apiKey: "k", baseURL: url, kind: provider.KindChat}
	_, err := p.Execute(context.Background(), &provider.Request{Kind: provider.KindChat})

	ue, ok := provider.AsUpstreamError(err)
	if !ok {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != 0 {
		t.Errorf("Expected status 0 for transport failure, got %d", ue.StatusCode)
	}
}
