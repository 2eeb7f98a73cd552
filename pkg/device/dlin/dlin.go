// Package dlin adapts the D-Lev librarian command-line tool ("d-lin") to the
// device.Channel interface.
//
// Every Send or Invoke spawns one librarian process: knob updates become
// "knob -pkv page:knob:value" invocations, state operations become the
// librarian's dump/pump forms. The librarian owns the serial link to the
// instrument exclusively, so the adapter serialises invocations: at most one
// librarian process runs at a time, and concurrent callers queue on an
// internal lock rather than fighting over the port.
//
// Serial access commonly requires elevated privileges on stock Linux setups;
// setting Config.UseSudo prefixes every invocation with sudo.
package dlin

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dlev-tools/formantpad/pkg/device"
)

// defaultTimeout bounds a single librarian invocation. The core treats every
// send as fire-and-forget, so a wedged serial port must not hang the caller
// forever; the adapter is where that bound lives.
const defaultTimeout = 5 * time.Second

// Config holds the knobs for a librarian-backed channel.
type Config struct {
	// Executable is the path to the d-lin binary. Default: "d-lin" resolved
	// via PATH.
	Executable string

	// UseSudo prefixes every invocation with sudo for serial port access.
	UseSudo bool

	// WorkDir is the directory the librarian runs in. Dump and pump file
	// names are resolved relative to it. Empty means the process working
	// directory.
	WorkDir string

	// Timeout bounds a single invocation. Default: 5s.
	Timeout time.Duration
}

// Channel invokes the d-lin librarian once per command.
//
// Safe for concurrent use. The zero value is NOT usable; create instances
// with [New].
type Channel struct {
	executable string
	useSudo    bool
	workDir    string
	timeout    time.Duration

	// mu serialises librarian invocations; the serial link cannot service
	// two processes at once.
	mu sync.Mutex
}

// Compile-time check: Channel must implement device.Channel.
var _ device.Channel = (*Channel)(nil)

// New creates a Channel from cfg. Zero-value config fields are replaced with
// defaults.
func New(cfg Config) *Channel {
	if cfg.Executable == "" {
		cfg.Executable = "d-lin"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Channel{
		executable: cfg.Executable,
		useSudo:    cfg.UseSudo,
		workDir:    cfg.WorkDir,
		timeout:    cfg.Timeout,
	}
}

// Resolve checks that the librarian executable can be found, via PATH lookup
// for a bare name or directly for an explicit path. It does not spawn a
// process, so it says nothing about the serial link itself; it is meant as a
// cheap readiness probe.
func (c *Channel) Resolve() error {
	if _, err := exec.LookPath(c.executable); err != nil {
		return fmt.Errorf("dlin: librarian not available: %w", err)
	}
	return nil
}

// Send transmits a single knob update via "knob -pkv page:knob:value".
func (c *Channel) Send(ctx context.Context, update device.KnobUpdate) error {
	if update.Page == "" {
		return fmt.Errorf("dlin: knob update has empty page")
	}
	return c.run(ctx, "knob", "-pkv", update.String())
}

// Invoke performs a whole-state operation via the librarian's dump/pump
// commands.
func (c *Channel) Invoke(ctx context.Context, op device.StateOp) error {
	args, err := opArgs(op)
	if err != nil {
		return err
	}
	return c.run(ctx, args...)
}

// opArgs translates a state operation into librarian arguments.
func opArgs(op device.StateOp) ([]string, error) {
	if op.File == "" {
		return nil, fmt.Errorf("dlin: %s operation requires a file name", op.Kind)
	}
	switch op.Kind {
	case device.DumpKnobs:
		return []string{"dump", "-k", "-f", op.File}, nil
	case device.PumpKnobs:
		return []string{"pump", "-k", "-f", op.File}, nil
	case device.DumpSlot:
		return []string{"dump", "-s", strconv.Itoa(op.Slot), "-f", op.File}, nil
	case device.PumpSlot:
		return []string{"pump", "-f", op.File, "-s", strconv.Itoa(op.Slot)}, nil
	default:
		return nil, fmt.Errorf("dlin: unknown state operation kind %d", op.Kind)
	}
}

// argv assembles the full command line including the optional sudo prefix.
func (c *Channel) argv(args []string) []string {
	cmd := make([]string, 0, len(args)+2)
	if c.useSudo {
		cmd = append(cmd, "sudo")
	}
	cmd = append(cmd, c.executable)
	return append(cmd, args...)
}

// run executes one librarian invocation and waits for it to finish. Held
// under the lock so invocations never overlap on the serial link.
func (c *Channel) run(ctx context.Context, args ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	argv := c.argv(args)
	slog.Debug("invoking librarian", "argv", strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.workDir

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		if output != "" {
			return fmt.Errorf("dlin: %s failed: %w (output: %s)", args[0], err, output)
		}
		return fmt.Errorf("dlin: %s failed: %w", args[0], err)
	}
	if output != "" {
		slog.Debug("librarian output", "command", args[0], "output", output)
	}
	return nil
}
