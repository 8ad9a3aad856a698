package music

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

// pointAt redirects an adapter built by a constructor at a test server.
func pointAt(a provider.Adapter, url string) *MusicProvider {
	p := a.(*MusicProvider)
	p.baseURL = url
	return p
}

func TestExecute_Stability(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer server.Close()

	p := pointAt(NewStability("sk", nil), server.URL)
	resp, err := p.Execute(context.Background(), &provider.Request{
		Kind:    provider.KindMusic,
		Count:   2,
		Payload: map[string]any{"prompt": "lofi beats", "duration": 30},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if gotPath != "/v2beta/music/generate" {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer sk" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if gotBody["prompt"] != "lofi beats" {
		t.Errorf("Expected prompt to be forwarded, got %v", gotBody)
	}
	if _, ok := gotBody["model"]; ok {
		t.Errorf("Expected no model without one requested, got %v", gotBody)
	}
	if string(resp.Body) != "RIFF" || resp.Provider != "stability" {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestExecute_Suno(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"clips":[{"id":"c1"}]}`))
	}))
	defer server.Close()

	p := pointAt(NewSuno("suno-key", nil), server.URL)
	resp, err := p.Execute(context.Background(), &provider.Request{
		Kind:    provider.KindMusic,
		Model:   "chirp-v3-5",
		Payload: map[string]any{"prompt": "sea shanty"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if gotPath != "/generate" {
		t.Errorf("Unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer suno-key" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if gotBody["model"] != "chirp-v3-5" || gotBody["prompt"] != "sea shanty" {
		t.Errorf("Unexpected upstream body %v", gotBody)
	}
	if resp.Model != "chirp-v3-5" || resp.ContentType != "application/json" {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestNames(t *testing.T) {
	for want, a := range map[string]provider.Adapter{
		"stability": NewStability("k", nil),
		"suno":      NewSuno("k", nil),
	} {
		if a.Name() != want || a.Kind() != provider.KindMusic {
			t.Errorf("Expected %s/music, got %s/%s", want, a.Name(), a.Kind())
		}
	}
}

func TestExecute_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	p := pointAt(NewStability("sk", nil), server.URL)
	_, err := p.Execute(context.Background(), &provider.Request{Kind: provider.KindMusic})

	ue, ok := provider.AsUpstreamError(err)
	if !ok {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if ue.StatusCode != http.StatusInternalServerError || ue.Detail != "boom" {
		t.Errorf("Unexpected error: %+v", ue)
	}
}

func TestExecute_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":"slow down"}`))
	}))
	defer server.Close()

	p := pointAt(NewSuno("suno-key", nil), server.URL)
	_, err := p.Execute(context.Background(), &provider.Request{Kind: provider.KindMusic})

	ue, ok := provider.AsUpstreamError(err)
	if !ok || ue.StatusCode != http.StatusTooManyRequests || ue.Provider != "suno" {
		t.Fatalf("Expected suno 429 UpstreamError, got %v", err)
	}
}
