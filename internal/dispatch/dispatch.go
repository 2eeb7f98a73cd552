// Package dispatch owns the traffic policy toward the device. Knob updates
// pass through a shared rate gate and are dropped rather than queued when
// they arrive too fast for the serial link; whole-state transfers always go
// through.
//
// The central type is [Dispatcher]. It is safe for concurrent use.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dlev-tools/formantpad/internal/observe"
	"github.com/dlev-tools/formantpad/pkg/device"
)

// DefaultMinInterval is the minimum spacing between accepted knob updates.
// It is tuned to what the device's serial link sustains without falling
// behind a continuously moving pad.
const DefaultMinInterval = 150 * time.Millisecond

// Config holds tuning knobs for a [Dispatcher].
type Config struct {
	// Channel is the device link updates are dispatched to. Required.
	Channel device.Channel

	// MinInterval is the minimum time between accepted knob updates.
	// Default: [DefaultMinInterval].
	MinInterval time.Duration

	// Metrics receives dispatch instrumentation.
	// Default: [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Dispatcher rate-limits knob traffic with a single shared timestamp: every
// accepted update advances the gate for all senders, so a burst of updates
// passes only as many as the interval allows regardless of which parameter
// each one addresses.
type Dispatcher struct {
	channel device.Channel
	metrics *observe.Metrics

	mu          sync.Mutex
	minInterval time.Duration
	lastAccept  time.Time
}

// New creates a [Dispatcher]. Zero-value config fields are replaced with
// defaults; a nil Channel is an error.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Channel == nil {
		return nil, errors.New("dispatch: channel is required")
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Dispatcher{
		channel:     cfg.Channel,
		minInterval: cfg.MinInterval,
		metrics:     cfg.Metrics,
	}, nil
}

// SetMinInterval changes the spacing of the rate gate while traffic may be
// flowing, for configuration reloads. Nonpositive values reset to
// [DefaultMinInterval]. The new spacing applies from the next acceptance
// check; an already accepted update is unaffected.
func (d *Dispatcher) SetMinInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	d.mu.Lock()
	d.minInterval = interval
	d.mu.Unlock()
}

// DispatchThrottled forwards update to the device if the rate gate allows it
// and reports whether the update was accepted. Rejected updates are dropped,
// never queued. The gate advances at acceptance, so a send that subsequently
// fails still consumed the interval; transmission failures are logged and
// counted but not retried, and do not affect the return value.
func (d *Dispatcher) DispatchThrottled(ctx context.Context, update device.KnobUpdate) bool {
	if !d.accept() {
		d.metrics.RecordKnobDrop(ctx)
		observe.Logger(ctx).Debug("knob update dropped by rate gate",
			"update", update.String())
		return false
	}

	start := time.Now()
	err := d.channel.Send(ctx, update)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		d.metrics.RecordKnobSend(ctx, "error", elapsed)
		observe.Logger(ctx).Error("knob update failed",
			"update", update.String(),
			"error", err)
		return true
	}
	d.metrics.RecordKnobSend(ctx, "ok", elapsed)
	return true
}

// DispatchBurst forwards each update through the same rate gate as
// [Dispatcher.DispatchThrottled] and returns how many were accepted. With
// the default interval a burst coming off one pad evaluation typically
// passes only its leading update.
func (d *Dispatcher) DispatchBurst(ctx context.Context, updates []device.KnobUpdate) int {
	accepted := 0
	for _, u := range updates {
		if d.DispatchThrottled(ctx, u) {
			accepted++
		}
	}
	return accepted
}

// DispatchImmediate forwards a whole-state operation to the device,
// bypassing the rate gate. Unlike knob traffic the outcome matters to the
// caller, so the channel's error is returned as well as logged.
func (d *Dispatcher) DispatchImmediate(ctx context.Context, op device.StateOp) error {
	start := time.Now()
	err := d.channel.Invoke(ctx, op)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		d.metrics.RecordStateOp(ctx, op.Kind.String(), "error", elapsed)
		observe.Logger(ctx).Error("state operation failed",
			"op", op.String(),
			"error", err)
		return err
	}
	d.metrics.RecordStateOp(ctx, op.Kind.String(), "ok", elapsed)
	observe.Logger(ctx).Info("state operation completed",
		"op", op.String(),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// accept reports whether a knob send may proceed now. On acceptance the
// shared timestamp advances immediately, so spacing is measured between
// acceptances rather than completions.
func (d *Dispatcher) accept() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if !d.lastAccept.IsZero() && now.Sub(d.lastAccept) < d.minInterval {
		return false
	}
	d.lastAccept = now
	return true
}
