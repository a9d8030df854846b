// Package domain holds the two worked annotated types exercised by
// this package's own tests and by cmd/room: a Token
// (a synced/persisted scalar leaf) and a Room (a synced/persisted
// collection of Tokens, keyed by symbol).
package domain

import (
	"time"

	"github.com/odin-rooms/roomsync/internal/reactive"
	"github.com/odin-rooms/roomsync/internal/statesync"
)

// Token is a single tradeable symbol's live state: price and volume are
// broadcast to every subscriber and persisted; UpdatedAt is persisted
// only, for audit/debugging, never pushed over the wire.
type Token struct {
	Symbol    string
	Price     *reactive.Scalar
	Volume    *reactive.Scalar
	UpdatedAt *reactive.Scalar
}

func init() {
	statesync.DefineClass[Token]().
		ID("Symbol").
		Sync("Price", statesync.WithTransform(roundToCents)).
		Sync("Volume").
		Persist("UpdatedAt")
}

// NewToken returns a Token seeded at price/volume 0.
func NewToken(symbol string) *Token {
	return &Token{
		Symbol:    symbol,
		Price:     reactive.NewScalar(0.0, nil),
		Volume:    reactive.NewScalar(0.0, nil),
		UpdatedAt: reactive.NewScalar(time.Time{}, nil),
	}
}

// Trade applies one authoritative trade tick: price and volume move, and
// UpdatedAt is stamped with the observation time (usually the ingest
// message's own timestamp, passed in by the caller rather than taken
// from time.Now so replays are deterministic).
func (t *Token) Trade(price, volume float64, observedAt time.Time) {
	t.Price.Set(price)
	t.Volume.Set(volume)
	t.UpdatedAt.Set(observedAt)
}

func roundToCents(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	cents := float64(int64(f*100+0.5)) / 100
	return cents
}
