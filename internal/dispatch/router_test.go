package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

func TestRoute_ByKindAndName(t *testing.T) {
	chat := &fakeAdapter{name: "openai", kind: provider.KindChat}
	image := &fakeAdapter{name: "openai", kind: provider.KindImage}
	router := NewRouter(chat, image)

	a, err := router.Route(provider.KindImage, "openai")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if a != image {
		t.Errorf("Expected image adapter, got %s/%s", a.Kind(), a.Name())
	}

	if _, err := router.Route(provider.KindTTS, "openai"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("Expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestRoute_CircuitBreakerOpen(t *testing.T) {
	bad := &fakeAdapter{name: "gemini", kind: provider.KindChat, err: &provider.UpstreamError{Provider: "gemini", StatusCode: 503}}
	router := NewRouter(bad)

	// Trip it
	for i := 0; i < 3; i++ {
		router.Execute(context.Background(), bad, &provider.Request{})
	}

	if _, err := router.Route(provider.KindChat, "gemini"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}

	_, err := router.Execute(context.Background(), bad, &provider.Request{})
	ue, ok := provider.AsUpstreamError(err)
	if !ok || ue.StatusCode != 503 {
		t.Errorf("Expected open breaker as 503 UpstreamError, got %v", err)
	}
	if got := bad.calls.Load(); got != 3 {
		t.Errorf("Expected 3 upstream calls, got %d", got)
	}
}

func TestRoute_ClientErrorsDoNotTrip(t *testing.T) {
	rejecting := &fakeAdapter{name: "anthropic", kind: provider.KindChat, err: &provider.UpstreamError{Provider: "anthropic", StatusCode: 400}}
	router := NewRouter(rejecting)

	for i := 0; i < 5; i++ {
		router.Execute(context.Background(), rejecting, &provider.Request{})
	}

	if _, err := router.Route(provider.KindChat, "anthropic"); err != nil {
		t.Errorf("Expected breaker closed after 4xx responses, got %v", err)
	}
}

func TestRoute_RateLimitTrips(t *testing.T) {
	limited := &fakeAdapter{name: "openai", kind: provider.KindChat, err: &provider.UpstreamError{Provider: "openai", StatusCode: 429}}
	router := NewRouter(limited)

	for i := 0; i < 3; i++ {
		router.Execute(context.Background(), limited, &provider.Request{})
	}

	if _, err := router.Route(provider.KindChat, "openai"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected 429s to open the breaker, got %v", err)
	}
}
