package roomguard

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/odin-rooms/roomsync/internal/roomconfig"
	"github.com/odin-rooms/roomsync/internal/roommetrics"
)

// GoroutineLimiter bounds concurrent goroutines with a buffered-channel
// semaphore.
type GoroutineLimiter struct {
	sem chan struct{}
	max int
}

// NewGoroutineLimiter returns a limiter admitting up to max concurrent
// holders.
func NewGoroutineLimiter(max int) *GoroutineLimiter {
	return &GoroutineLimiter{sem: make(chan struct{}, max), max: max}
}

// Acquire attempts to take a slot, returning false if at the limit.
func (gl *GoroutineLimiter) Acquire() bool {
	select {
	case gl.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a previously-acquired slot.
func (gl *GoroutineLimiter) Release() { <-gl.sem }

// Current reports the number of held slots.
func (gl *GoroutineLimiter) Current() int { return len(gl.sem) }

// Max reports the configured slot count.
func (gl *GoroutineLimiter) Max() int { return gl.max }

// Guard enforces the configured resource limits: a hard connection cap,
// a CPU/memory emergency brake, goroutine admission, and independent
// rate limits for ingest consumption and sync flushes. It holds no
// room-specific state — one Guard is shared by every attached room.
type Guard struct {
	cfg    roomconfig.Config
	logger zerolog.Logger

	ingestLimiter *rate.Limiter
	syncLimiter   *rate.Limiter
	goroutines    *GoroutineLimiter
	cpu           *cpuMonitor

	currentCPU    atomic.Value // float64
	currentMemory atomic.Value // int64
	currentConns  *int64       // caller-owned connection counter
}

// New builds a Guard from cfg. currentConns must point at the caller's
// live connection counter (updated via atomic ops as clients
// connect/disconnect).
func New(cfg roomconfig.Config, logger zerolog.Logger, currentConns *int64) *Guard {
	g := &Guard{
		cfg:           cfg,
		logger:        logger,
		ingestLimiter: rate.NewLimiter(rate.Limit(cfg.MaxIngestRate), cfg.MaxIngestRate*2),
		syncLimiter:   rate.NewLimiter(rate.Limit(cfg.MaxSyncRate), cfg.MaxSyncRate*2),
		goroutines:    NewGoroutineLimiter(cfg.MaxGoroutines),
		cpu:           newCPUMonitor(logger),
		currentConns:  currentConns,
	}
	g.currentCPU.Store(0.0)
	g.currentMemory.Store(int64(0))

	logger.Info().
		Str("cpu_mode", g.cpu.Mode()).
		Float64("cpu_allocation", g.cpu.GetAllocation()).
		Int("max_connections", cfg.MaxConnections).
		Int("max_ingest_rate", cfg.MaxIngestRate).
		Int("max_sync_rate", cfg.MaxSyncRate).
		Msgf("resource guard initialized: will reject connections at %.0f%% CPU", cfg.CPURejectThreshold)

	return g
}

// ShouldAcceptConnection checks the hard connection cap, CPU/memory
// brakes, and goroutine headroom, in that order.
func (g *Guard) ShouldAcceptConnection() (accept bool, reason string) {
	conns := atomic.LoadInt64(g.currentConns)
	cpuPct := g.currentCPU.Load().(float64)
	mem := g.currentMemory.Load().(int64)
	goros := runtime.NumGoroutine()

	if conns >= int64(g.cfg.MaxConnections) {
		roommetrics.ConnectionsRejected.WithLabelValues("at_max_connections").Inc()
		return false, fmt.Sprintf("at max connections (%d)", g.cfg.MaxConnections)
	}
	if cpuPct > g.cfg.CPURejectThreshold {
		roommetrics.ConnectionsRejected.WithLabelValues("cpu_overload").Inc()
		return false, fmt.Sprintf("CPU %.1f%% > %.1f%%", cpuPct, g.cfg.CPURejectThreshold)
	}
	if mem > g.cfg.MemoryLimit {
		roommetrics.ConnectionsRejected.WithLabelValues("memory_limit").Inc()
		return false, "memory limit exceeded"
	}
	if goros > g.cfg.MaxGoroutines {
		roommetrics.ConnectionsRejected.WithLabelValues("goroutine_limit").Inc()
		return false, fmt.Sprintf("goroutine limit exceeded (%d > %d)", goros, g.cfg.MaxGoroutines)
	}
	return true, "OK"
}

// ShouldPauseIngest reports whether ingest consumption should pause —
// the backpressure signal internal/ingest's consumer polls before
// fetching its next batch.
func (g *Guard) ShouldPauseIngest() bool {
	return g.currentCPU.Load().(float64) > g.cfg.CPUPauseThreshold
}

// AllowIngestMessage rate-limits ingest consumption without blocking;
// allow is false if the caller should back off for waitDuration before
// retrying.
func (g *Guard) AllowIngestMessage() (allow bool, waitDuration time.Duration) {
	reservation := g.ingestLimiter.Reserve()
	if !reservation.OK() {
		return false, 0
	}
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return false, delay
	}
	return true, 0
}

// AllowSyncFlush rate-limits onSync/onPersist flush delivery.
func (g *Guard) AllowSyncFlush() bool {
	return g.syncLimiter.Allow()
}

// AcquireGoroutine reserves a goroutine slot; callers that acquire one
// must call ReleaseGoroutine when the goroutine exits.
func (g *Guard) AcquireGoroutine() bool {
	ok := g.goroutines.Acquire()
	if !ok {
		g.logger.Warn().
			Int("current", g.goroutines.Current()).
			Int("max", g.goroutines.Max()).
			Msg("goroutine limit reached")
	}
	return ok
}

// ReleaseGoroutine frees a goroutine slot acquired via AcquireGoroutine.
func (g *Guard) ReleaseGoroutine() { g.goroutines.Release() }

// UpdateResources samples current CPU (container-aware) and process
// memory, storing them for ShouldAcceptConnection/ShouldPauseIngest to
// read and publishing them to roommetrics.
func (g *Guard) UpdateResources() {
	cpuPct, throttle, err := g.cpu.GetPercent()
	if err != nil {
		cpuPct = 0
	}
	g.currentCPU.Store(cpuPct)
	roommetrics.CPUUsagePercent.Set(cpuPct)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	g.currentMemory.Store(int64(mem.Alloc))
	roommetrics.MemoryUsageBytes.Set(float64(mem.Alloc))
	roommetrics.GoroutinesActive.Set(float64(runtime.NumGoroutine()))

	g.logger.Debug().
		Float64("cpu_percent", cpuPct).
		Uint64("cpu_throttled_events", throttle.NrThrottled).
		Float64("cpu_throttled_sec", throttle.ThrottledSec).
		Int64("memory_bytes", g.currentMemory.Load().(int64)).
		Int64("connections", atomic.LoadInt64(g.currentConns)).
		Int("goroutines", runtime.NumGoroutine()).
		Msg("resource state updated")
}

// StartMonitoring calls UpdateResources on interval until ctx is
// cancelled.
func (g *Guard) StartMonitoring(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.UpdateResources()
			case <-ctx.Done():
				g.logger.Info().Msg("resource guard monitoring stopped")
				return
			}
		}
	}()
	g.logger.Info().Dur("interval", interval).Msg("resource guard monitoring started")
}

// Stats returns a debug snapshot of current guard state.
func (g *Guard) Stats() map[string]any {
	return map[string]any{
		"max_connections":      g.cfg.MaxConnections,
		"current_connections":  atomic.LoadInt64(g.currentConns),
		"cpu_percent":          g.currentCPU.Load().(float64),
		"cpu_reject_threshold": g.cfg.CPURejectThreshold,
		"cpu_pause_threshold":  g.cfg.CPUPauseThreshold,
		"memory_bytes":         g.currentMemory.Load().(int64),
		"memory_limit_bytes":   g.cfg.MemoryLimit,
		"goroutines_current":   runtime.NumGoroutine(),
		"goroutines_limit":     g.cfg.MaxGoroutines,
		"ingest_rate_limit":    g.cfg.MaxIngestRate,
		"sync_rate_limit":      g.cfg.MaxSyncRate,
	}
}
