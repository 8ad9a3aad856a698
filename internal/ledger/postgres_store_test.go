package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	val int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.val
	return nil
}

// fakeDB emulates credit_accounts for a single account.
type fakeDB struct {
	credits int64
	exists  bool
	down    bool
}

func (d *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if d.down {
		return fakeRow{err: errors.New("connection refused")}
	}
	switch {
	case strings.Contains(sql, "SELECT credits"):
		if !d.exists {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{val: d.credits}
	case strings.Contains(sql, "UPDATE credit_accounts"):
		amount := args[1].(int64)
		if !d.exists || d.credits < amount {
			return fakeRow{err: pgx.ErrNoRows}
		}
		d.credits -= amount
		return fakeRow{val: d.credits}
	case strings.Contains(sql, "INSERT INTO credit_accounts"):
		d.exists = true
		d.credits += args[1].(int64)
		return fakeRow{val: d.credits}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

func TestPostgresLedger_ReserveInsufficientReportsBalance(t *testing.T) {
	ctx := context.Background()
	l := NewPostgresLedger(&fakeDB{exists: true, credits: 3})

	bal, err := l.Reserve(ctx, "acct", 5)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(3), bal)
}

func TestPostgresLedger_TopUpCreatesAccount(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{}
	l := NewPostgresLedger(db)

	bal, err := l.Balance(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)

	bal, err = l.TopUp(ctx, "acct", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)

	bal, err = l.Reserve(ctx, "acct", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
}

func TestPostgresLedger_StoreDownIsUnavailable(t *testing.T) {
	l := NewPostgresLedger(&fakeDB{down: true})

	_, err := l.Reserve(context.Background(), "acct", 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrInsufficientFunds)
}
