package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger keeps balances in the credit_accounts table:
//
//	CREATE TABLE credit_accounts (
//		account    TEXT PRIMARY KEY,
//		credits    BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
//		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresLedger struct {
	db DB
}

var _ Ledger = (*PostgresLedger)(nil)

func NewPostgresLedger(db DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Balance(ctx context.Context, account string) (int64, error) {
	query := `SELECT credits FROM credit_accounts WHERE account = $1`

	var bal int64
	err := l.db.QueryRow(ctx, query, account).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("balance", err)
	}
	return bal, nil
}

// Reserve is a single conditional UPDATE; the row lock serialises
// concurrent reservations on the same account.
func (l *PostgresLedger) Reserve(ctx context.Context, account string, amount int64) (int64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}

	query := `
		UPDATE credit_accounts
		SET credits = credits - $2, updated_at = now()
		WHERE account = $1 AND credits >= $2
		RETURNING credits
	`
	var bal int64
	err := l.db.QueryRow(ctx, query, account, amount).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		current, berr := l.Balance(ctx, account)
		if berr != nil {
			return 0, berr
		}
		return current, ErrInsufficientFunds
	}
	if err != nil {
		return 0, unavailable("reserve", err)
	}
	return bal, nil
}

func (l *PostgresLedger) Refund(ctx context.Context, account string, amount int64) (int64, error) {
	return l.credit(ctx, "refund", account, amount)
}

func (l *PostgresLedger) TopUp(ctx context.Context, account string, amount int64) (int64, error) {
	return l.credit(ctx, "top up", account, amount)
}

func (l *PostgresLedger) credit(ctx context.Context, op, account string, amount int64) (int64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO credit_accounts (account, credits)
		VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE
		SET credits = credit_accounts.credits + EXCLUDED.credits, updated_at = now()
		RETURNING credits
	`
	var bal int64
	if err := l.db.QueryRow(ctx, query, account, amount).Scan(&bal); err != nil {
		return 0, unavailable(op, err)
	}
	return bal, nil
}
