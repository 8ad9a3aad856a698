// Package pricing turns a requested operation into a credit charge.
//
// Charges are static estimates taken before the upstream call; actual
// upstream usage never adjusts them.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/vnmchuo/ai-broker/internal/provider"
)

// Unit is what an entry's UnitCost is priced per.
type Unit string

const (
	UnitToken   Unit = "token"
	UnitSecond  Unit = "second"
	UnitImage   Unit = "image"
	UnitClip    Unit = "clip"
	UnitRequest Unit = "request"
)

// ceilSlack absorbs float error so that e.g. 0.05*1.8/0.01 bills 9, not 10.
const ceilSlack = 1e-9

var ErrNoPrice = errors.New("pricing: no entry for operation")

// Entry prices one (kind, provider) pair in USD.
type Entry struct {
	Unit     Unit    `yaml:"unit"`
	UnitCost float64 `yaml:"unit_cost"`
	// Minimum is a floor on the USD estimate of a single request.
	Minimum float64 `yaml:"minimum"`
}

// Entries is keyed by operation kind, then provider name.
type Entries map[provider.Kind]map[string]Entry

// Quantity carries the sizing fields of one request.
type Quantity struct {
	Tokens  int64
	Seconds float64
	Images  int
	Clips   int
}

// Table is read-only after construction and safe for concurrent use.
type Table struct {
	entries      Entries
	margin       float64
	usdPerCredit float64
}

// DefaultEntries returns the built-in upstream cost estimates.
func DefaultEntries() Entries {
	return Entries{
		provider.KindChat: {
			"openai":    {Unit: UnitToken, UnitCost: 4e-6, Minimum: 0.002},
			"anthropic": {Unit: UnitToken, UnitCost: 15e-6, Minimum: 0.002},
			"gemini":    {Unit: UnitToken, UnitCost: 0, Minimum: 0.002},
		},
		provider.KindImage: {
			"openai": {Unit: UnitImage, UnitCost: 0.04},
			"gemini": {Unit: UnitImage, UnitCost: 0.039},
		},
		provider.KindTTS: {
			"elevenlabs": {Unit: UnitSecond, UnitCost: 0.0003},
		},
		provider.KindMusic: {
			"stability": {Unit: UnitClip, UnitCost: 0.05},
			"suno":      {Unit: UnitClip, UnitCost: 0.05},
		},
	}
}

// New builds a Table. margin multiplies the upstream estimate; usdPerCredit
// is the retail price of one credit.
func New(entries Entries, margin, usdPerCredit float64) (*Table, error) {
	if margin <= 0 {
		return nil, fmt.Errorf("pricing: margin multiplier must be positive, got %v", margin)
	}
	if usdPerCredit <= 0 {
		return nil, fmt.Errorf("pricing: usd per credit must be positive, got %v", usdPerCredit)
	}

	copied := make(Entries, len(entries))
	for kind, byProvider := range entries {
		m := make(map[string]Entry, len(byProvider))
		for name, e := range byProvider {
			if e.UnitCost < 0 || e.Minimum < 0 {
				return nil, fmt.Errorf("pricing: negative cost for %s/%s", kind, name)
			}
			m[name] = e
		}
		copied[kind] = m
	}

	return &Table{entries: copied, margin: margin, usdPerCredit: usdPerCredit}, nil
}

// Lookup returns the entry for a (kind, provider) pair.
func (t *Table) Lookup(kind provider.Kind, name string) (Entry, bool) {
	e, ok := t.entries[kind][name]
	return e, ok
}

// EstimateCost returns the estimated upstream cost in USD.
func (t *Table) EstimateCost(kind provider.Kind, name string, q Quantity) (float64, error) {
	e, ok := t.Lookup(kind, name)
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrNoPrice, kind, name)
	}

	var units float64
	switch e.Unit {
	case UnitToken:
		units = float64(q.Tokens)
	case UnitSecond:
		units = q.Seconds
	case UnitImage:
		units = float64(max(q.Images, 1))
	case UnitClip:
		units = float64(max(q.Clips, 1))
	default:
		units = 1
	}

	return math.Max(units*e.UnitCost, e.Minimum), nil
}

// CreditsFor converts a USD estimate into credits:
// ceil(usd * margin / usdPerCredit), never less than 1 and saturating at
// math.MaxInt64.
func (t *Table) CreditsFor(usd float64) int64 {
	c := math.Ceil(usd*t.margin/t.usdPerCredit - ceilSlack)
	if math.IsNaN(c) || c < 1 {
		return 1
	}
	// float64(math.MaxInt64) rounds up to 2^63, which no int64 can hold.
	if c >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(c)
}

// Charge prices a request end to end, returning the credit charge and the
// underlying USD estimate.
func (t *Table) Charge(kind provider.Kind, name string, q Quantity) (int64, float64, error) {
	usd, err := t.EstimateCost(kind, name, q)
	if err != nil {
		return 0, 0, err
	}
	return t.CreditsFor(usd), usd, nil
}
