package proxy

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnmchuo/ai-broker/internal/auth"
	"github.com/vnmchuo/ai-broker/internal/dispatch"
	"github.com/vnmchuo/ai-broker/internal/ledger"
	"github.com/vnmchuo/ai-broker/internal/provider"
	"github.com/vnmchuo/ai-broker/internal/usage"
)

const maxBodyBytes = 8 << 20

type Handler struct {
	engine      *dispatch.Engine
	ledger      ledger.Ledger
	usage       usage.Reader
	adminSecret []byte
	logger      zerolog.Logger
}

// NewHandler wires the HTTP surface. reader may be nil when the usage store
// has no read path; /v1/usage then answers 501.
func NewHandler(engine *dispatch.Engine, l ledger.Ledger, reader usage.Reader, adminSecret string, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:      engine,
		ledger:      l,
		usage:       reader,
		adminSecret: []byte(adminSecret),
		logger:      logger,
	}
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, provider.KindChat)
}

func (h *Handler) HandleImage(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, provider.KindImage)
}

func (h *Handler) HandleTTS(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, provider.KindTTS)
}

func (h *Handler) HandleMusic(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, provider.KindMusic)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, kind provider.Kind) {
	ctx := r.Context()

	var body map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	req, err := buildRequest(kind, body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	req.RequestID = auth.GetRequestID(ctx)

	res, err := h.engine.Dispatch(ctx, auth.GetCredentials(ctx), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := res.Response
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Credits-Charged", strconv.FormatInt(res.Charged, 10))
	w.Header().Set("X-Credits-Remaining", strconv.FormatInt(res.Balance, 10))
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credits, err := h.engine.Balance(ctx, auth.GetCredentials(ctx))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"credits": credits})
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := h.engine.Authenticate(auth.GetCredentials(ctx))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.usage == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"error": "usage history is not available"})
		return
	}

	// Parse query parameters
	now := time.Now()
	from := now.AddDate(0, 0, -30) // Default: last 30 days
	to := now

	if s := r.URL.Query().Get("from"); s != "" {
		if from, err = time.Parse(time.RFC3339, s); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid 'from' date format (use RFC3339)"})
			return
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if to, err = time.Parse(time.RFC3339, s); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid 'to' date format (use RFC3339)"})
			return
		}
	}

	events, err := h.usage.ListByAccount(ctx, account, from, to)
	if err != nil {
		h.logger.Error().Err(err).Str("account", auth.Fingerprint(account)).Msg("usage query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to load usage"})
		return
	}
	total, err := h.usage.TotalCreditsByAccount(ctx, account, from, to)
	if err != nil {
		h.logger.Error().Err(err).Str("account", auth.Fingerprint(account)).Msg("usage total failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to load usage"})
		return
	}
	if events == nil {
		events = []*usage.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_requests": len(events),
		"total_credits":  total,
		"events":         events,
		"from":           from,
		"to":             to,
	})
}

type addCreditsRequest struct {
	APIKey  string `json:"apiKey"`
	Credits int64  `json:"credits"`
}

// HandleAddCredits is the operator top-up endpoint, guarded by X-Admin-Secret.
// It is disabled when no admin secret is configured.
func (h *Handler) HandleAddCredits(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Admin-Secret")
	if len(h.adminSecret) == 0 || subtle.ConstantTimeCompare([]byte(secret), h.adminSecret) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	var body addCreditsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if body.APIKey == "" || body.Credits <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "apiKey and a positive credits amount are required"})
		return
	}

	account := auth.AccountID(body.APIKey)
	balance, err := h.ledger.TopUp(r.Context(), account, body.Credits)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info().
		Str("account", auth.Fingerprint(account)).
		Int64("credits", body.Credits).
		Int64("balance", balance).
		Msg("credits added")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "credits": balance})
}

// writeError maps the dispatch error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var funds *dispatch.InsufficientFundsError
	switch {
	case errors.Is(err, dispatch.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})

	case errors.As(err, &funds):
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":    "insufficient credits",
			"required": funds.Required,
			"balance":  funds.Balance,
		})

	case errors.Is(err, dispatch.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})

	case errors.Is(err, dispatch.ErrUnsupportedProvider):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported provider"})

	case errors.Is(err, dispatch.ErrProviderUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "provider temporarily unavailable"})

	case errors.Is(err, dispatch.ErrLedgerUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "billing temporarily unavailable"})

	default:
		if ue, ok := provider.AsUpstreamError(err); ok {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":    "upstream error",
				"provider": ue.Provider,
				"status":   ue.StatusCode,
				"detail":   ue.Detail,
			})
			return
		}
		h.logger.Error().Err(err).Msg("unclassified error")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
