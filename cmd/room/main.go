// cmd/room is a thin demonstrator: it wires internal/statesync.Attach to
// a NATS JetStream KV persistence store, a Kafka/Redpanda ingest path,
// and a gobwas/ws fan-out gateway for one room. It has no auth, no
// schema validation, no CORS handling, and no session-transfer
// machinery — this process exists only to prove the wiring, not to be
// a production room server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	_ "go.uber.org/automaxprocs"

	"github.com/odin-rooms/roomsync/internal/domain"
	"github.com/odin-rooms/roomsync/internal/gateway"
	"github.com/odin-rooms/roomsync/internal/ingest"
	"github.com/odin-rooms/roomsync/internal/roomconfig"
	"github.com/odin-rooms/roomsync/internal/roomguard"
	"github.com/odin-rooms/roomsync/internal/roomkit"
	"github.com/odin-rooms/roomsync/internal/roomlog"
	"github.com/odin-rooms/roomsync/internal/roommetrics"
	"github.com/odin-rooms/roomsync/internal/statesync"
	"github.com/odin-rooms/roomsync/internal/storage"
)

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	flag.Parse()

	startupLogger := roomlog.New(roomlog.Config{Level: "info", Format: "pretty"})

	cfg, err := roomconfig.Load(&startupLogger)
	if err != nil {
		startupLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	cfg.Print()

	roomlog.Init(roomlog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := log.Logger

	var activeConns int64
	guard := roomguard.New(*cfg, logger, &activeConns)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	guard.StartMonitoring(ctx, cfg.MetricsInterval)

	store, err := storage.NewNATSKV(ctx, cfg.NATSURL, cfg.PersistBucket, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("falling back to in-memory persistence store (no NATS JetStream KV reachable)")
	}
	var persistStore storage.Store
	if store != nil {
		defer store.Close()
		persistStore = store
	} else {
		persistStore = storage.NewMemory()
	}

	room := domain.NewRoom("lobby")
	hub := gateway.NewHub(logger)

	executor := roomkit.NewExecutor(256, logger)
	executor.Start(ctx)
	defer executor.Stop()

	syncThrottle := roomkit.NewMergingThrottle(time.Second/time.Duration(max1(cfg.MaxSyncRate)),
		func(existing, incoming *statesync.OrderedMap) *statesync.OrderedMap { return existing.Merge(incoming) },
		func(batch *statesync.OrderedMap) {
			data, err := json.Marshal(batch)
			if err != nil {
				roomlog.Error(logger, err, "failed to marshal sync batch", nil)
				return
			}
			hub.Broadcast(data)
			roommetrics.SyncFlushesTotal.Inc()
			roommetrics.SyncBatchEntries.Observe(float64(batch.Len()))
		})
	defer syncThrottle.Stop()

	handle := statesync.Attach(room,
		func(batch *statesync.OrderedMap) {
			executor.Submit(func() { syncThrottle.Trigger(batch) })
		},
		func(batch *statesync.OrderedMap) {
			executor.Submit(func() {
				batch.Each(func(shard string, value any) {
					if err := persistStore.Put(ctx, shard, value); err != nil {
						roomlog.Error(logger, err, "failed to persist shard", map[string]any{"shard": shard})
						return
					}
				})
				roommetrics.PersistFlushesTotal.Inc()
			})
		},
	)
	defer handle.Detach()
	roommetrics.RoomsActive.Set(1)

	consumer, err := ingest.NewConsumer(ingest.Config{
		Brokers:       splitBrokers(cfg.KafkaBrokers),
		ConsumerGroup: cfg.ConsumerGroup,
		Topics:        []string{cfg.IngestTopic},
		Logger:        logger,
		Guard:         guard,
		Resolve: func(roomID string) (any, bool) {
			if roomID != "lobby" {
				return nil, false
			}
			return room, true
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create ingest consumer")
	}
	consumer.Start()
	defer consumer.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		hub.ServeHTTP(w, r, guard.ShouldAcceptConnection)
	})
	mux.Handle("/metrics", roommetrics.Handler())

	server := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("room server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("room server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during http shutdown")
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
