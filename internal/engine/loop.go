package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/torrevieja/waterworks/internal/events"
)

// Loop drives the tick cycle. It is a toggle, not a lifecycle: Stop
// suspends ticking while the network, its subscriptions, and any pending
// pump recoveries stay live, and Start resumes from the same clock.
type Loop struct {
	engine  *Engine
	rate    time.Duration
	logger  *zap.Logger
	running atomic.Bool
}

// NewLoop creates a stopped loop ticking at the given rate.
func NewLoop(e *Engine, rate time.Duration, log *zap.Logger) *Loop {
	return &Loop{
		engine: e,
		rate:   rate,
		logger: log,
	}
}

// Start flips the loop to running. Returns false if it already was; the
// started event is only recorded on a real transition.
func (l *Loop) Start() bool {
	if !l.running.CompareAndSwap(false, true) {
		return false
	}
	l.logger.Info("simulation started", zap.Duration("tick_rate", l.rate))
	l.engine.appendEvent(events.EventTypeSimStarted, "loop", nil)
	return true
}

// Stop flips the loop to stopped. Returns false if it already was.
// Recovery timers scheduled by overheated pumps keep running.
func (l *Loop) Stop() bool {
	if !l.running.CompareAndSwap(true, false) {
		return false
	}
	l.logger.Info("simulation stopped")
	l.engine.appendEvent(events.EventTypeSimStopped, "loop", nil)
	return true
}

// Running reports the toggle state.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Run blocks until ctx is cancelled, ticking the engine at the configured
// rate whenever the toggle is on. Call in a goroutine.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("simulation loop exiting")
			return
		case <-ticker.C:
			if l.running.Load() {
				l.engine.tick()
			}
		}
	}
}
