package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

// RedisLedger stores balances as integer strings under
// "<prefix><account>:credits".
type RedisLedger struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ Ledger = (*RedisLedger)(nil)

// RedisOption configures RedisLedger.
type RedisOption func(*RedisLedger)

// WithKeyPrefix sets the key prefix (default "user:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLedger) { l.keyPrefix = prefix }
}

// NewRedisLedger accepts a *goredis.Client or *goredis.ClusterClient.
func NewRedisLedger(client goredis.Cmdable, opts ...RedisOption) *RedisLedger {
	l := &RedisLedger{
		client:    client,
		keyPrefix: "user:",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLedger) key(account string) string {
	return l.keyPrefix + account + ":credits"
}

// reserveScript decrements only when the balance covers the amount.
// KEYS[1] = balance key
// ARGV[1] = amount
//
// Returns {1, new_balance} on success, {0, current_balance} otherwise.
var reserveScript = goredis.NewScript(`
local balance = tonumber(redis.call("GET", KEYS[1]) or "0")
local amount = tonumber(ARGV[1])
if balance < amount then
    return {0, balance}
end
return {1, redis.call("DECRBY", KEYS[1], amount)}
`)

func (l *RedisLedger) Balance(ctx context.Context, account string) (int64, error) {
	v, err := l.client.Get(ctx, l.key(account)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("balance", err)
	}
	bal, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ledger/redis: corrupt balance for %s: %w", account, err)
	}
	return bal, nil
}

func (l *RedisLedger) Reserve(ctx context.Context, account string, amount int64) (int64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}

	res, err := reserveScript.Run(ctx, l.client, []string{l.key(account)}, amount).Int64Slice()
	if err != nil {
		return 0, unavailable("reserve", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("ledger/redis: unexpected reserve result: %v", res)
	}
	if res[0] == 0 {
		return res[1], ErrInsufficientFunds
	}
	return res[1], nil
}

func (l *RedisLedger) Refund(ctx context.Context, account string, amount int64) (int64, error) {
	return l.incr(ctx, "refund", account, amount)
}

func (l *RedisLedger) TopUp(ctx context.Context, account string, amount int64) (int64, error) {
	return l.incr(ctx, "top up", account, amount)
}

func (l *RedisLedger) incr(ctx context.Context, op, account string, amount int64) (int64, error) {
	if err := checkAmount(amount); err != nil {
		return 0, err
	}
	bal, err := l.client.IncrBy(ctx, l.key(account), amount).Result()
	if err != nil {
		return 0, unavailable(op, err)
	}
	return bal, nil
}
