// Package mock provides a test double for the device.Channel interface.
//
// Use Channel to verify which knob updates and state operations the core
// dispatches, and to inject transmission failures.
//
// Example:
//
//	ch := &mock.Channel{SendErr: errors.New("serial port busy")}
//	d, _ := dispatch.New(dispatch.Config{Channel: ch})
//	d.DispatchThrottled(ctx, update) // failure is logged, recorded on ch
package mock

import (
	"context"
	"sync"

	"github.com/dlev-tools/formantpad/pkg/device"
)

// SendCall records a single invocation of Send.
type SendCall struct {
	// Ctx is the context passed to Send.
	Ctx context.Context
	// Update is the knob update passed to Send.
	Update device.KnobUpdate
}

// InvokeCall records a single invocation of Invoke.
type InvokeCall struct {
	// Ctx is the context passed to Invoke.
	Ctx context.Context
	// Op is the state operation passed to Invoke.
	Op device.StateOp
}

// Channel is a mock implementation of device.Channel.
type Channel struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SendErr, if non-nil, is returned from every Send call.
	SendErr error

	// InvokeErr, if non-nil, is returned from every Invoke call.
	InvokeErr error

	// --- Call records ---

	// SendCalls records every call to Send in order.
	SendCalls []SendCall

	// InvokeCalls records every call to Invoke in order.
	InvokeCalls []InvokeCall
}

// Send records the call and returns SendErr.
func (c *Channel) Send(ctx context.Context, update device.KnobUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SendCalls = append(c.SendCalls, SendCall{Ctx: ctx, Update: update})
	return c.SendErr
}

// Invoke records the call and returns InvokeErr.
func (c *Channel) Invoke(ctx context.Context, op device.StateOp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.InvokeCalls = append(c.InvokeCalls, InvokeCall{Ctx: ctx, Op: op})
	return c.InvokeErr
}

// Sent returns a copy of the knob updates recorded so far, in send order.
func (c *Channel) Sent() []device.KnobUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]device.KnobUpdate, len(c.SendCalls))
	for i, call := range c.SendCalls {
		out[i] = call.Update
	}
	return out
}

// Invoked returns a copy of the state operations recorded so far, in order.
func (c *Channel) Invoked() []device.StateOp {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]device.StateOp, len(c.InvokeCalls))
	for i, call := range c.InvokeCalls {
		out[i] = call.Op
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SendCalls = nil
	c.InvokeCalls = nil
}

// Ensure Channel implements device.Channel at compile time.
var _ device.Channel = (*Channel)(nil)
