package seeder

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vnmchuo/ai-broker/internal/auth"
	"github.com/vnmchuo/ai-broker/internal/ledger"
)

const (
	TestAPIKey  = "test-api-key-12345"
	TestCredits = 1000
)

// SeedTestAccount grants TestCredits to the test key's account when its
// balance is zero. It returns the resulting balance.
func SeedTestAccount(ctx context.Context, l ledger.Ledger, logger zerolog.Logger) (int64, error) {
	account := auth.AccountID(TestAPIKey)

	balance, err := l.Balance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("seed: read balance: %w", err)
	}
	if balance > 0 {
		logger.Info().Int64("balance", balance).Msg("[Seeder] test account already funded, skipping")
		return balance, nil
	}

	balance, err = l.TopUp(ctx, account, TestCredits)
	if err != nil {
		return 0, fmt.Errorf("seed: top up: %w", err)
	}
	logger.Info().
		Str("key", TestAPIKey).
		Str("account", auth.Fingerprint(account)).
		Int64("balance", balance).
		Msg("[Seeder] test account funded")
	return balance, nil
}
