package usage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

// Event records one successfully charged operation. Events are write-once.
type Event struct {
	ID         string        `json:"id"`
	Account    string        `json:"account"`
	RequestID  string        `json:"request_id"`
	Kind       provider.Kind `json:"kind"`
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	Credits    int64         `json:"credits"`
	CostUSD    float64       `json:"cost_usd"`
	LatencyMs  int64         `json:"latency_ms"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (e *Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (e *Event) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}

// Store is the append-only usage log.
type Store interface {
	Append(ctx context.Context, ev *Event) error
}

// Reader is implemented by stores that can serve usage back to callers.
type Reader interface {
	ListByAccount(ctx context.Context, account string, from, to time.Time) ([]*Event, error)
	TotalCreditsByAccount(ctx context.Context, account string, from, to time.Time) (int64, error)
}
