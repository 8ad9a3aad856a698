package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

type routeKey struct {
	kind provider.Kind
	name string
}

type route struct {
	adapter provider.Adapter
	breaker *gobreaker.CircuitBreaker
}

// Router is the adapter registry. Each adapter gets its own circuit breaker;
// only upstream failures that are not the caller's fault count against it.
type Router struct {
	mu     sync.RWMutex
	routes map[routeKey]*route
}

func NewRouter(adapters ...provider.Adapter) *Router {
	r := &Router{routes: make(map[routeKey]*route)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for (a.Kind(), a.Name()).
func (r *Router) Register(a provider.Adapter) {
	settings := gobreaker.Settings{
		Name:        string(a.Kind()) + "/" + a.Name(),
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: breakerSuccess,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[routeKey{a.Kind(), a.Name()}] = &route{
		adapter: a,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Route resolves the adapter for kind and provider name. It fails with
// ErrUnsupportedProvider for unknown pairs and ErrProviderUnavailable while
// the adapter's breaker is open.
func (r *Router) Route(kind provider.Kind, name string) (provider.Adapter, error) {
	r.mu.RLock()
	rt, ok := r.routes[routeKey{kind, name}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedProvider, kind, name)
	}
	if rt.breaker.State() == gobreaker.StateOpen {
		return nil, fmt.Errorf("%w: %s/%s", ErrProviderUnavailable, kind, name)
	}
	return rt.adapter, nil
}

// Execute calls the adapter through its breaker. Any failure comes back as a
// *provider.UpstreamError.
func (r *Router) Execute(ctx context.Context, a provider.Adapter, req *provider.Request) (*provider.Response, error) {
	r.mu.RLock()
	rt, ok := r.routes[routeKey{a.Kind(), a.Name()}]
	r.mu.RUnlock()
	if !ok {
		return nil, &provider.UpstreamError{Provider: a.Name(), Detail: "adapter not registered"}
	}

	result, err := rt.breaker.Execute(func() (interface{}, error) {
		return a.Execute(ctx, req)
	})
	if err != nil {
		if ue, ok := provider.AsUpstreamError(err); ok {
			return nil, ue
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &provider.UpstreamError{
				Provider:   a.Name(),
				StatusCode: http.StatusServiceUnavailable,
				Detail:     err.Error(),
			}
		}
		return nil, &provider.UpstreamError{Provider: a.Name(), Detail: err.Error()}
	}
	return result.(*provider.Response), nil
}

// breakerSuccess treats 4xx rejections other than 429 as healthy upstreams.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	ue, ok := provider.AsUpstreamError(err)
	if !ok {
		return false
	}
	return ue.StatusCode >= 400 && ue.StatusCode < 500 && ue.StatusCode != http.StatusTooManyRequests
}
