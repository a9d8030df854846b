package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/odin-rooms/roomsync/internal/roommetrics"
)

// NATSKV is a Store backed by a NATS JetStream key-value bucket. One
// bucket holds every shard for one room: the dotted shard path (e.g.
// "Tokens.ODIN") is used directly as the KV key, the same way the
// connection this is grounded on builds dotted subjects per token
// (Subjects.TokenPrice) rather than hashing or flattening them further.
type NATSKV struct {
	conn   *nats.Conn
	kv     jetstream.KeyValue
	logger zerolog.Logger
}

// NewNATSKV connects to url and creates (or reuses) bucket, following
// the connection-event-handler pattern of the client this is grounded
// on: connect/disconnect/reconnect/error are all logged through zerolog
// instead of a plain *log.Logger, and a disconnect with an error or an
// async error is also counted in roommetrics.ErrorsTotal.
func NewNATSKV(ctx context.Context, url, bucket string, logger zerolog.Logger) (*NATSKV, error) {
	store := &NATSKV{logger: logger}

	conn, err := nats.Connect(url,
		nats.ConnectHandler(store.onConnect),
		nats.DisconnectErrHandler(store.onDisconnect),
		nats.ReconnectHandler(store.onReconnect),
		nats.ErrorHandler(store.onError),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: connecting to nats at %s: %w", url, err)
	}
	store.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: creating jetstream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: opening kv bucket %s: %w", bucket, err)
	}
	store.kv = kv

	return store, nil
}

func (s *NATSKV) onConnect(conn *nats.Conn) {
	s.logger.Info().Str("url", conn.ConnectedUrl()).Msg("connected to nats")
}

func (s *NATSKV) onDisconnect(_ *nats.Conn, err error) {
	if err != nil {
		s.logger.Warn().Err(err).Msg("disconnected from nats")
		roommetrics.ErrorsTotal.WithLabelValues("storage", "warn").Inc()
		return
	}
	s.logger.Info().Msg("disconnected from nats")
}

func (s *NATSKV) onReconnect(conn *nats.Conn) {
	s.logger.Info().Str("url", conn.ConnectedUrl()).Msg("reconnected to nats")
}

func (s *NATSKV) onError(_ *nats.Conn, _ *nats.Subscription, err error) {
	s.logger.Error().Err(err).Msg("nats error")
	roommetrics.ErrorsTotal.WithLabelValues("storage", "error").Inc()
}

// Put JSON-encodes value and writes it under key.
func (s *NATSKV) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: marshaling %s: %w", key, err)
	}
	if _, err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("storage: putting %s: %w", key, err)
	}
	return nil
}

// Get reads and JSON-decodes the value stored at key.
func (s *NATSKV) Get(ctx context.Context, key string) (any, bool, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: getting %s: %w", key, err)
	}
	var value any
	if err := json.Unmarshal(entry.Value(), &value); err != nil {
		return nil, false, fmt.Errorf("storage: unmarshaling %s: %w", key, err)
	}
	return value, true, nil
}

// Delete removes key from the bucket.
func (s *NATSKV) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("storage: deleting %s: %w", key, err)
	}
	return nil
}

// List returns every key currently in the bucket.
func (s *NATSKV) List(ctx context.Context) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: listing keys: %w", err)
	}
	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close releases the underlying NATS connection.
func (s *NATSKV) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
