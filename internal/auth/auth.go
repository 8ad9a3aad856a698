package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

var ErrUnauthorized = errors.New("unauthorized")

// Credentials are the raw caller credentials of one request.
type Credentials struct {
	APIKey string

	// ProxySecret is the X-RapidAPI-Proxy-Secret header, if sent.
	ProxySecret    string
	HasProxySecret bool
}

type Middleware func(next http.Handler) http.Handler

type contextKey string

const (
	credentialsKey contextKey = "credentials"
	requestIDKey   contextKey = "request_id"
)

// FromRequest extracts the API key from, in order: Authorization Bearer,
// X-RapidAPI-Key, X-API-Key, the api_key query parameter.
func FromRequest(r *http.Request) Credentials {
	var c Credentials
	// An empty header counts as absent.
	if v := r.Header.Get("X-RapidAPI-Proxy-Secret"); v != "" {
		c.ProxySecret = v
		c.HasProxySecret = true
	}

	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		c.APIKey = strings.TrimSpace(h[7:])
	}
	if c.APIKey == "" {
		c.APIKey = r.Header.Get("X-RapidAPI-Key")
	}
	if c.APIKey == "" {
		c.APIKey = r.Header.Get("X-API-Key")
	}
	if c.APIKey == "" {
		c.APIKey = r.URL.Query().Get("api_key")
	}
	return c
}

// AccountID derives the ledger account for an API key. Raw keys are never
// stored.
func AccountID(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// Fingerprint shortens an account ID for log lines.
func Fingerprint(account string) string {
	if len(account) > 12 {
		return account[:12]
	}
	return account
}

// Authenticator resolves credentials to an account. When a gateway secret is
// configured, a presented X-RapidAPI-Proxy-Secret must match it; with
// required set, the header must also be present.
type Authenticator struct {
	secret   []byte
	required bool
}

func NewAuthenticator(gatewaySecret string, required bool) *Authenticator {
	return &Authenticator{secret: []byte(gatewaySecret), required: required}
}

func (a *Authenticator) Authenticate(c Credentials) (string, error) {
	if c.HasProxySecret {
		if len(a.secret) == 0 || subtle.ConstantTimeCompare([]byte(c.ProxySecret), a.secret) != 1 {
			return "", ErrUnauthorized
		}
	} else if a.required {
		return "", ErrUnauthorized
	}

	if c.APIKey == "" {
		return "", ErrUnauthorized
	}
	return AccountID(c.APIKey), nil
}

// NewMiddleware assigns a request ID and stashes the caller's credentials in
// the request context. Authentication itself happens in the dispatch engine
// so that every failure is classified in one place.
func NewMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.New().String()
			w.Header().Set("X-Request-ID", requestID)

			ctx := WithRequestID(r.Context(), requestID)
			ctx = WithCredentials(ctx, FromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetCredentials(ctx context.Context) Credentials {
	if c, ok := ctx.Value(credentialsKey).(Credentials); ok {
		return c
	}
	return Credentials{}
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey, c)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
