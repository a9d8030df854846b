// Package ingest consumes authoritative mutations from Kafka/Redpanda and
// applies them to live room instances via statesync.LoadJSON: a Kafka
// record is a single room's path-payload, keyed by room ID.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/odin-rooms/roomsync/internal/roomguard"
	"github.com/odin-rooms/roomsync/internal/roommetrics"
	"github.com/odin-rooms/roomsync/internal/statesync"
)

// Resolver maps a Kafka record's key (the room ID) to the live instance
// that record's payload should be applied to. ok is false for a room the
// process doesn't hold (e.g. sharded to another instance) — the message
// is dropped rather than misrouted.
type Resolver func(roomID string) (instance any, ok bool)

// Consumer wraps a franz-go client consuming room mutations, applying
// each record through statesync.LoadJSON under roomguard backpressure.
type Consumer struct {
	client   *kgo.Client
	logger   zerolog.Logger
	resolve  Resolver
	guard    *roomguard.Guard
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Config holds consumer configuration.
type Config struct {
	Brokers       []string
	ConsumerGroup string
	Topics        []string
	Logger        zerolog.Logger
	Guard         *roomguard.Guard
	Resolve       Resolver
}

// NewConsumer builds a Consumer. The client starts consuming only after
// Start is called.
func NewConsumer(cfg Config) (*Consumer, error) {
	ctx, cancel := context.WithCancel(context.Background())

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.FetchMaxWait(500*time.Millisecond),
		kgo.FetchMinBytes(1),
		kgo.FetchMaxBytes(10*1024*1024),
		kgo.SessionTimeout(30*time.Second),
		kgo.RebalanceTimeout(60*time.Second),
		kgo.OnPartitionsAssigned(func(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
			cfg.Logger.Info().Interface("partitions", assigned).Msg("ingest partitions assigned")
		}),
		kgo.OnPartitionsRevoked(func(_ context.Context, _ *kgo.Client, revoked map[string][]int32) {
			cfg.Logger.Info().Interface("partitions", revoked).Msg("ingest partitions revoked")
		}),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	return &Consumer{
		client:  client,
		logger:  cfg.Logger,
		resolve: cfg.Resolve,
		guard:   cfg.Guard,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start launches the consume loop in its own goroutine.
func (c *Consumer) Start() {
	c.logger.Info().Msg("starting ingest consumer")
	c.wg.Add(1)
	go c.consumeLoop()
}

// Stop cancels the consume loop, waits for it to exit, and closes the
// underlying client.
func (c *Consumer) Stop() {
	c.logger.Info().Msg("stopping ingest consumer")
	c.cancel()
	c.wg.Wait()
	c.client.Close()
}

func (c *Consumer) consumeLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.guard != nil && c.guard.ShouldPauseIngest() {
			roommetrics.IngestPaused.Set(1)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		roommetrics.IngestPaused.Set(0)

		fetches := c.client.PollFetches(c.ctx)
		for _, fetchErr := range fetches.Errors() {
			c.logger.Error().
				Err(fetchErr.Err).
				Str("topic", fetchErr.Topic).
				Int32("partition", fetchErr.Partition).
				Msg("ingest fetch error")
			roommetrics.ErrorsTotal.WithLabelValues("ingest", "error").Inc()
		}
		fetches.EachRecord(c.applyRecord)
	}
}

func (c *Consumer) applyRecord(record *kgo.Record) {
	roomID := string(record.Key)
	if roomID == "" {
		roommetrics.IngestDroppedTotal.WithLabelValues("missing_room_id").Inc()
		return
	}

	if c.guard != nil {
		if allow, wait := c.guard.AllowIngestMessage(); !allow {
			roommetrics.IngestDroppedTotal.WithLabelValues("rate_limited").Inc()
			time.Sleep(wait)
			return
		}
	}

	instance, ok := c.resolve(roomID)
	if !ok {
		roommetrics.IngestDroppedTotal.WithLabelValues("unknown_room").Inc()
		return
	}

	if err := statesync.LoadJSON(instance, record.Value); err != nil {
		c.logger.Error().Err(err).Str("room_id", roomID).Msg("failed to apply ingest payload")
		roommetrics.IngestDroppedTotal.WithLabelValues("decode_error").Inc()
		return
	}

	roommetrics.IngestMessagesTotal.Inc()
}
