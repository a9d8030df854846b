package domain

import (
	"github.com/odin-rooms/roomsync/internal/reactive"
	"github.com/odin-rooms/roomsync/internal/statesync"
)

// Room holds a live set of Tokens, keyed by symbol, plus a Label synced
// purely for display. Tokens is an object cell whose class-typed entries
// are reconstructed via NewToken on Load (see statesync.WithClassType) —
// this is the nested-class propagation scenario every other fixture in
// this package is too small to exercise on its own.
type Room struct {
	Label  *reactive.Scalar
	Tokens *reactive.Object
}

func init() {
	statesync.DefineClass[Room]().
		Sync("Label").
		Sync("Tokens", statesync.WithClassType(func(key string) any {
			return NewToken(key)
		}))
}

// NewRoom returns an empty, named Room.
func NewRoom(label string) *Room {
	return &Room{
		Label:  reactive.NewScalar(label, nil),
		Tokens: reactive.NewObject(nil),
	}
}

// Upsert adds or replaces the Token held at symbol.
func (r *Room) Upsert(symbol string, token *Token) {
	r.Tokens.SetKey(symbol, token)
}

// Remove drops the Token at symbol, if present.
func (r *Room) Remove(symbol string) {
	r.Tokens.DeleteKey(symbol)
}

// Token returns the Token at symbol, constructing and inserting a fresh
// one (price/volume 0) if none exists yet — the common "first trade for
// a symbol" path for internal/ingest.
func (r *Room) Token(symbol string) *Token {
	if v, ok := r.Tokens.Get(symbol); ok {
		return v.(*Token)
	}
	t := NewToken(symbol)
	r.Tokens.SetKey(symbol, t)
	return t
}
