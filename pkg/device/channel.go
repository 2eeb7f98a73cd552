// Package device defines the capability interface between the formant
// mapping core and a D-Lev instrument.
//
// The core never talks to hardware directly. It emits two kinds of commands:
// single-knob updates (a page, a knob index on that page, and an integer
// value) and whole-state operations (dump or pump named knob files, move
// presets between slots). How those commands reach the instrument, whether
// via a subprocess wrapping the librarian binary, a direct serial driver, or
// a network hop, is an adapter concern. See the dlin and mock subpackages for
// the two shipped adapters.
package device

import (
	"context"
	"fmt"
)

// KnobUpdate addresses a single knob on the instrument and the value to
// write to it. Page is the two-character editor page label ("0f".."3f" for
// the four formant pages, "0o" for the oscillator page), Knob the index of
// the knob on that page.
type KnobUpdate struct {
	Page  string
	Knob  int
	Value int
}

// String renders the update in page:knob:value form, the same notation the
// librarian CLI and the device documentation use.
func (u KnobUpdate) String() string {
	return fmt.Sprintf("%s:%d:%d", u.Page, u.Knob, u.Value)
}

// OpKind enumerates the whole-state operations a Channel must support.
type OpKind int

const (
	// DumpKnobs reads the current knob state of the active slot into a named
	// file on the host.
	DumpKnobs OpKind = iota

	// PumpKnobs writes a previously dumped knob file back to the device,
	// overwriting the current knob state.
	PumpKnobs

	// DumpSlot reads a full preset from an addressable slot into a named file.
	DumpSlot

	// PumpSlot writes a preset file into an addressable slot.
	PumpSlot
)

// String returns the human-readable name of the operation kind.
func (k OpKind) String() string {
	switch k {
	case DumpKnobs:
		return "dump-knobs"
	case PumpKnobs:
		return "pump-knobs"
	case DumpSlot:
		return "dump-slot"
	case PumpSlot:
		return "pump-slot"
	default:
		return "unknown"
	}
}

// StateOp describes one whole-state operation. File names the host-side blob
// for all four kinds. Slot is only meaningful for DumpSlot and PumpSlot;
// the knob-file kinds operate on whatever slot the instrument has active.
type StateOp struct {
	Kind OpKind
	Slot int
	File string
}

// String summarises the operation for log output.
func (o StateOp) String() string {
	switch o.Kind {
	case DumpSlot, PumpSlot:
		return fmt.Sprintf("%s slot=%d file=%q", o.Kind, o.Slot, o.File)
	default:
		return fmt.Sprintf("%s file=%q", o.Kind, o.File)
	}
}

// Channel is the abstraction over any transport to a D-Lev instrument.
//
// Implementations must be safe for concurrent use: the dispatcher may issue a
// throttled Send from one goroutine while a preset operation arrives from
// another. Both methods block until the instrument has accepted or rejected
// the command; callers that need fire-and-forget behaviour wrap the call
// themselves.
type Channel interface {
	// Send transmits a single knob update. A non-nil error means the update
	// did not reach the instrument; the device state is unchanged as far as
	// the caller can know.
	Send(ctx context.Context, update KnobUpdate) error

	// Invoke performs a whole-state operation. Dump kinds create or overwrite
	// the named host-side file; pump kinds require it to exist. A non-nil
	// error means the operation did not complete and the named file or slot
	// must not be assumed valid.
	Invoke(ctx context.Context, op StateOp) error
}
