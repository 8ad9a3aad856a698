// Package dispatch runs one metered operation end to end:
// authenticate, price, reserve, call the upstream, then keep the charge or
// refund it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnmchuo/ai-broker/internal/auth"
	"github.com/vnmchuo/ai-broker/internal/ledger"
	"github.com/vnmchuo/ai-broker/internal/metrics"
	"github.com/vnmchuo/ai-broker/internal/pricing"
	"github.com/vnmchuo/ai-broker/internal/provider"
	"github.com/vnmchuo/ai-broker/internal/usage"
	"github.com/vnmchuo/ai-broker/internal/worker"
)

const refundTimeout = 5 * time.Second

type Authenticator interface {
	Authenticate(c auth.Credentials) (string, error)
}

type Config struct {
	Auth    Authenticator
	Router  *Router
	Pricing *pricing.Table
	Ledger  ledger.Ledger
	Usage   worker.Queue
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	Logger  zerolog.Logger

	// UpstreamTimeout bounds a single adapter call. Zero means 60s.
	UpstreamTimeout time.Duration
}

type Engine struct {
	auth            Authenticator
	router          *Router
	pricing         *pricing.Table
	ledger          ledger.Ledger
	usage           worker.Queue
	metrics         *metrics.Metrics
	tracer          trace.Tracer
	logger          zerolog.Logger
	upstreamTimeout time.Duration
	now             func() time.Time
}

// Result is a committed operation.
type Result struct {
	Response *provider.Response
	Account  string
	Charged  int64
	// Balance is the balance right after the reservation.
	Balance int64
	CostUSD float64
}

func NewEngine(cfg Config) *Engine {
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/vnmchuo/ai-broker/internal/dispatch")
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 60 * time.Second
	}
	return &Engine{
		auth:            cfg.Auth,
		router:          cfg.Router,
		pricing:         cfg.Pricing,
		ledger:          cfg.Ledger,
		usage:           cfg.Usage,
		metrics:         cfg.Metrics,
		tracer:          cfg.Tracer,
		logger:          cfg.Logger,
		upstreamTimeout: cfg.UpstreamTimeout,
		now:             time.Now,
	}
}

// Dispatch performs req on behalf of the caller identified by creds.
//
// Once credits are reserved the sequence runs to completion even if ctx is
// cancelled, so a client disconnect never strands a reservation.
func (e *Engine) Dispatch(ctx context.Context, creds auth.Credentials, req *provider.Request) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("kind", string(req.Kind)),
			attribute.String("provider", req.Provider),
			attribute.String("model", req.Model),
			attribute.String("request_id", req.RequestID),
		))
	defer span.End()

	res, outcome, err := e.dispatch(ctx, creds, req)

	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetAttributes(attribute.Int64("credits", res.Charged))
	}
	if e.metrics != nil {
		e.metrics.IncDispatch(string(req.Kind), req.Provider, outcome)
	}
	return res, err
}

func (e *Engine) dispatch(ctx context.Context, creds auth.Credentials, req *provider.Request) (*Result, string, error) {
	account, err := e.Authenticate(creds)
	if err != nil {
		return nil, metrics.OutcomeUnauthorized, err
	}

	if err := validate(req); err != nil {
		return nil, metrics.OutcomeInvalid, err
	}

	adapter, err := e.router.Route(req.Kind, req.Provider)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			return nil, metrics.OutcomeProviderUnavailable, err
		}
		return nil, metrics.OutcomeUnsupported, err
	}

	charge, costUSD, err := e.pricing.Charge(req.Kind, req.Provider, pricing.QuantityFor(req))
	if err != nil {
		return nil, metrics.OutcomeUnsupported, fmt.Errorf("%w: %v", ErrUnsupportedProvider, err)
	}

	log := e.logger.With().
		Str("account", auth.Fingerprint(account)).
		Str("request_id", req.RequestID).
		Str("kind", string(req.Kind)).
		Str("provider", req.Provider).
		Int64("credits", charge).
		Logger()

	// From here on the caller can no longer abort the sequence.
	ctx = context.WithoutCancel(ctx)

	balance, err := e.ledger.Reserve(ctx, account, charge)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return nil, metrics.OutcomeInsufficientFunds, &InsufficientFundsError{Required: charge, Balance: balance}
		}
		log.Error().Err(err).Msg("reserve failed")
		if !errors.Is(err, ErrLedgerUnavailable) {
			err = fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
		}
		return nil, metrics.OutcomeLedgerUnavailable, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.upstreamTimeout)
	started := e.now()
	resp, err := e.router.Execute(callCtx, adapter, req)
	cancel()
	if e.metrics != nil {
		e.metrics.ObserveUpstream(string(req.Kind), req.Provider, e.now().Sub(started))
	}

	if err != nil {
		e.refund(ctx, log, account, charge, err)
		return nil, metrics.OutcomeUpstreamError, err
	}

	if resp.LatencyMs == 0 {
		resp.LatencyMs = e.now().Sub(started).Milliseconds()
	}
	e.record(log, account, req, resp, charge, costUSD)

	return &Result{
		Response: resp,
		Account:  account,
		Charged:  charge,
		Balance:  balance,
		CostUSD:  costUSD,
	}, metrics.OutcomeOK, nil
}

// refund reverses a reservation exactly once. A failed refund is logged for
// reconciliation and never replaces the upstream error.
func (e *Engine) refund(ctx context.Context, log zerolog.Logger, account string, charge int64, cause error) {
	ctx, cancel := context.WithTimeout(ctx, refundTimeout)
	defer cancel()

	_, err := e.ledger.Refund(ctx, account, charge)
	if e.metrics != nil {
		e.metrics.IncRefund(err == nil)
	}
	if err != nil {
		log.Error().
			Err(err).
			Bool("reconcile", true).
			Str("account_id", account).
			AnErr("upstream_error", cause).
			Msg("refund failed")
		return
	}
	log.Info().AnErr("upstream_error", cause).Msg("reservation refunded")
}

func (e *Engine) record(log zerolog.Logger, account string, req *provider.Request, resp *provider.Response, charge int64, costUSD float64) {
	if e.metrics != nil {
		e.metrics.AddCredits(string(req.Kind), req.Provider, charge)
	}
	if e.usage == nil {
		return
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	ev := &usage.Event{
		ID:         uuid.New().String(),
		Account:    account,
		RequestID:  req.RequestID,
		Kind:       req.Kind,
		Provider:   req.Provider,
		Model:      model,
		Credits:    charge,
		CostUSD:    costUSD,
		LatencyMs:  resp.LatencyMs,
		OccurredAt: e.now().UTC(),
	}
	if !e.usage.Enqueue(ev) {
		log.Warn().Str("event_id", ev.ID).Msg("usage event dropped")
	}
}

// Authenticate resolves creds to an account ID.
func (e *Engine) Authenticate(creds auth.Credentials) (string, error) {
	account, err := e.auth.Authenticate(creds)
	if err != nil {
		return "", ErrUnauthorized
	}
	return account, nil
}

// Balance returns the caller's current balance.
func (e *Engine) Balance(ctx context.Context, creds auth.Credentials) (int64, error) {
	account, err := e.Authenticate(creds)
	if err != nil {
		return 0, err
	}
	return e.ledger.Balance(ctx, account)
}

func validate(req *provider.Request) error {
	switch req.Kind {
	case provider.KindChat, provider.KindImage, provider.KindTTS, provider.KindMusic:
	default:
		return fmt.Errorf("%w: unknown operation kind %q", ErrInvalidRequest, req.Kind)
	}
	if req.Provider == "" {
		return fmt.Errorf("%w: provider is required", ErrInvalidRequest)
	}
	if req.Count < 0 || req.Seconds < 0 || req.MaxTokens < 0 {
		return fmt.Errorf("%w: sizing fields must not be negative", ErrInvalidRequest)
	}
	return nil
}
