package seeder

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/ai-broker/internal/auth"
	"github.com/vnmchuo/ai-broker/internal/ledger"
)

func TestSeedTestAccount(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()

	balance, err := SeedTestAccount(ctx, l, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, int64(TestCredits), balance)

	_, err = l.Reserve(ctx, auth.AccountID(TestAPIKey), 10)
	require.NoError(t, err)

	balance, err = SeedTestAccount(ctx, l, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, int64(TestCredits-10), balance, "a funded account is left alone")
}
