// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// BridgeOptions configures a Bridge.
type BridgeOptions struct {
	Logger   zerolog.Logger
	Timeouts TimeoutConfig
	// MaxConcurrent bounds how many handlers run at once. Zero means unbounded.
	MaxConcurrent int64
}

// Bridge runs handlers on their own goroutines and resolves one Slot per
// invocation, whatever the handler does.
type Bridge struct {
	logger   zerolog.Logger
	timeouts TimeoutConfig
	sem      *semaphore.Weighted
	inflight sync.WaitGroup
}

// NewBridge creates a bridge with the given options.
func NewBridge(opts BridgeOptions) *Bridge {
	b := &Bridge{
		logger:   opts.Logger.With().Str("component", "bridge").Logger(),
		timeouts: opts.Timeouts,
	}
	if opts.MaxConcurrent > 0 {
		b.sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	return b
}

// Schedule starts h on a new goroutine and returns its slot immediately.
func (b *Bridge) Schedule(ctx context.Context, name string, h Handler, args map[string]interface{}) *Slot {
	if ctx == nil {
		ctx = context.Background()
	}
	slot := newSlot(uuid.NewString(), name)
	b.logger.Debug().
		Str("tool", name).
		Str("invocation", slot.ID()).
		Msg("scheduling tool invocation")

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.run(context.WithoutCancel(ctx), slot, h, args)
	}()
	return slot
}

// Wait blocks until every scheduled handler has returned, including those
// whose slots were already resolved by a timeout.
func (b *Bridge) Wait() {
	b.inflight.Wait()
}

func (b *Bridge) run(ctx context.Context, slot *Slot, h Handler, args map[string]interface{}) {
	start := time.Now()
	name := slot.Tool()

	timeout := b.timeouts.TimeoutForTool(name)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	release := func() {}
	if b.sem != nil {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			b.finish(slot, start, ErrorResult(b.deadlineError(name, timeout, err)))
			return
		}
		release = func() { b.sem.Release(1) }
	}

	if timeout <= 0 {
		defer release()
		b.finish(slot, start, b.invoke(ctx, slot, h, args))
		return
	}

	// A handler that outlives its timeout keeps its permit and counts as
	// in flight until it returns.
	outcome := make(chan *Result, 1)
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		defer release()
		outcome <- b.invoke(ctx, slot, h, args)
	}()
	select {
	case result := <-outcome:
		b.finish(slot, start, result)
	case <-ctx.Done():
		b.finish(slot, start, ErrorResult(b.deadlineError(name, timeout, ctx.Err())))
	}
}

// invoke calls the handler and converts every outcome, including a panic,
// into a Result.
func (b *Bridge) invoke(ctx context.Context, slot *Slot, h Handler, args map[string]interface{}) (result *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			fault := NewHandlerFault(slot.Tool(), fmt.Errorf("panic: %v", rec))
			b.logger.Error().
				Str("tool", slot.Tool()).
				Str("invocation", slot.ID()).
				Str("stack", string(debug.Stack())).
				Err(fault).
				Msg("tool handler panicked")
			result = ErrorResult(fault.Err)
		}
	}()

	value, err := h.Handle(ctx, args)
	if err != nil {
		b.logger.Warn().
			Str("tool", slot.Tool()).
			Str("invocation", slot.ID()).
			Err(NewHandlerFault(slot.Tool(), err)).
			Msg("tool handler failed")
	}
	return Encode(value, err)
}

func (b *Bridge) deadlineError(name string, timeout time.Duration, err error) error {
	if timeout > 0 && err == context.DeadlineExceeded {
		return NewTimeoutError(name, timeout)
	}
	return err
}

func (b *Bridge) finish(slot *Slot, start time.Time, result *Result) {
	if !slot.Resolve(result) {
		return
	}
	b.logger.Debug().
		Str("tool", slot.Tool()).
		Str("invocation", slot.ID()).
		Dur("duration", time.Since(start)).
		Bool("is_error", result.IsError).
		Msg("tool invocation completed")
}
