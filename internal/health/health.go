// Package health provides the liveness and readiness probes of the remote
// pad server.
//
//   - /healthz: liveness; a process that can answer HTTP is alive.
//   - /readyz: readiness; runs every registered [Checker] and returns 503
//     when any of them fails.
//
// The pad server registers two domain probes: [Device], which verifies the
// librarian executable can be resolved, and [WorkDir], which verifies the
// state directory accepts writes. Responses are JSON objects with a top-level
// "status" field ("ok" or "fail") and a "checks" map with per-probe results.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// checkTimeout bounds a single readiness probe. Both built-in probes are
// local filesystem operations, but a state directory on a network mount can
// stall, so the deadline is generous.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. Check returns nil when the dependency
// is usable and an error describing the failure otherwise.
type Checker struct {
	// Name labels the probe in the JSON response (e.g. "device", "work_dir").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// Resolver is the part of the device channel the readiness probe needs: a
// way to confirm the control executable exists without touching the
// instrument itself.
type Resolver interface {
	Resolve() error
}

// Device returns a probe that verifies the librarian executable can be
// found. It does not open the serial link, so a ready process may still see
// send failures when the instrument is unplugged.
func Device(r Resolver) Checker {
	return Checker{
		Name: "device",
		Check: func(context.Context) error {
			return r.Resolve()
		},
	}
}

// WorkDir returns a probe that verifies dir accepts writes by creating and
// removing a probe file. Base captures and preset dumps land in this
// directory, so a missing or read-only mount should fail readiness before a
// performance does.
func WorkDir(dir string) Checker {
	return Checker{
		Name: "work_dir",
		Check: func(context.Context) error {
			f, err := os.CreateTemp(dir, ".fpad-probe-*")
			if err != nil {
				return fmt.Errorf("work dir not writable: %w", err)
			}
			name := f.Name()
			f.Close()
			return os.Remove(name)
		},
	}
}

// result is the JSON body written by both endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the /healthz and /readyz endpoints. The probe list is fixed
// at construction time, so the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given probes, in order, on each
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs every probe and returns 200 only when all of them pass. Each
// probe gets a context with a [checkTimeout] deadline derived from the
// request context, and every result is reported even when an early probe
// already failed.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	failed := false

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			failed = true
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if failed {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
