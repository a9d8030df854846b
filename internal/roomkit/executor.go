// Package roomkit provides the concurrency primitives a room needs on
// top of the reactive/statesync core: a single serialized executor so a
// room's mutations never race each other, and a throttle for coalescing
// onSync/onPersist delivery.
package roomkit

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/odin-rooms/roomsync/internal/roomlog"
)

// Task is a unit of work run on an Executor's single worker goroutine.
type Task func()

// Executor runs submitted tasks one at a time, in submission order, on
// a single dedicated goroutine — so every mutation and flush for one
// room is linearized, and a cell's subscribers never see interleaved
// updates from two goroutines. A panic in one task is recovered and
// logged; the worker keeps running.
//
// A fixed-size worker pool would bring contention without a throughput
// benefit here: a room's state is small, and mutations to a given room
// need to be totally ordered, not just eventually applied.
type Executor struct {
	tasks   chan Task
	logger  zerolog.Logger
	dropped int64
	mu      sync.Mutex // guards dropped

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExecutor returns an Executor with a task queue of the given
// capacity. Call Start before Submit.
func NewExecutor(queueSize int, logger zerolog.Logger) *Executor {
	return &Executor{
		tasks:  make(chan Task, queueSize),
		logger: logger,
	}
}

// Start launches the worker goroutine. ctx's cancellation stops it after
// the in-flight task (if any) completes.
func (e *Executor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go e.run(ctx)
}

func (e *Executor) run(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case task := <-e.tasks:
			e.runTask(task)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Executor) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			roomlog.Panic(e.logger, r, "executor task panic recovered", nil)
		}
	}()
	task()
}

// Submit enqueues task. If the queue is full, task runs synchronously
// in the caller's goroutine rather than being dropped — room mutations
// must not be silently lost, only serialized with the rest.
func (e *Executor) Submit(task Task) {
	select {
	case e.tasks <- task:
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
		e.runTask(task)
	}
}

// Dropped returns how many submissions overflowed the queue and ran
// synchronously on the caller's goroutine instead.
func (e *Executor) Dropped() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Stop cancels the worker and waits for it to exit.
func (e *Executor) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}
