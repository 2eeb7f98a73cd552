// Package remote exposes one formantpad session to an external control
// surface: a WebSocket endpoint that streams pad gestures into the session,
// plus the operational endpoints (health, readiness, Prometheus metrics).
//
// The surface itself (a tablet page, a hardware controller bridge) stays
// outside this process. The server only defines the boundary: JSON events in,
// knob traffic out through the session's dispatcher.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dlev-tools/formantpad/internal/app"
	"github.com/dlev-tools/formantpad/internal/health"
	"github.com/dlev-tools/formantpad/internal/observe"
)

// defaultShutdownTimeout bounds graceful shutdown once the run context is
// cancelled.
const defaultShutdownTimeout = 5 * time.Second

// stateWriteTimeout bounds the initial state frame sent to a new pad client.
const stateWriteTimeout = 5 * time.Second

// Config wires a [Server].
type Config struct {
	// Listen is the TCP address to bind, e.g. "127.0.0.1:8732". Required.
	Listen string

	// App is the session the pad events drive. Required.
	App *app.App

	// Checkers are the readiness probes served on /readyz.
	Checkers []health.Checker

	// ServeMetrics mounts the Prometheus handler on /metrics. It only
	// reports data when the OTel Prometheus bridge was installed.
	ServeMetrics bool

	// Metrics receives session instrumentation. Default: [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// ShutdownTimeout bounds graceful shutdown. Default: 5s.
	ShutdownTimeout time.Duration
}

// Server is the remote pad server. Construct with [New], drive with
// [Server.Run].
type Server struct {
	listen          string
	app             *app.App
	checkers        []health.Checker
	serveMetrics    bool
	metrics         *observe.Metrics
	shutdownTimeout time.Duration

	mu        sync.Mutex
	boundAddr string
}

// New validates cfg and returns a [Server]. Zero-value optional fields get
// defaults.
func New(cfg Config) (*Server, error) {
	if cfg.Listen == "" {
		return nil, errors.New("remote: listen address is required")
	}
	if cfg.App == nil {
		return nil, errors.New("remote: app is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Server{
		listen:          cfg.Listen,
		app:             cfg.App,
		checkers:        cfg.Checkers,
		serveMetrics:    cfg.ServeMetrics,
		metrics:         cfg.Metrics,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// Handler returns the server's route tree. Exposed so tests can mount it on
// an httptest server.
func (s *Server) Handler() http.Handler {
	ops := http.NewServeMux()
	if s.serveMetrics {
		ops.Handle("GET /metrics", promhttp.Handler())
	}
	health.New(s.checkers...).Register(ops)

	root := http.NewServeMux()
	// The pad socket sits outside the tracing middleware: the upgrade hijacks
	// the connection and must see the raw ResponseWriter.
	root.HandleFunc("GET /pad", s.handlePad)
	root.Handle("/", observe.Middleware(s.metrics)(ops))
	return root
}

// Run binds the listen address and serves until ctx is cancelled or the
// listener fails. Shutdown drains in-flight requests for at most the
// configured timeout; open pad sockets are closed by context cancellation.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("remote: listen %s: %w", s.listen, err)
	}

	s.mu.Lock()
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts derive from the run context so pad read loops
		// unblock on shutdown; Shutdown itself does not wait for hijacked
		// connections.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		observe.Logger(gctx).Info("remote pad server listening", "addr", s.BoundAddr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("remote: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	return g.Wait()
}

// BoundAddr returns the address the listener actually bound, which differs
// from the configured one when it named port 0. Empty until [Server.Run] has
// bound.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

// padEvent is one JSON frame from a pad client. Type selects the session
// method; the other fields carry that event's payload.
type padEvent struct {
	Type  string  `json:"type"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value float64 `json:"value"`
	Name  string  `json:"name"`
}

// padState is the frame sent to a client on connect so the surface can draw
// the session as it stands.
type padState struct {
	Type       string  `json:"type"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Archetype  string  `json:"archetype"`
	Brightness float64 `json:"brightness"`
	Resonance  float64 `json:"resonance"`
	Enabled    bool    `json:"enabled"`
}

// handlePad upgrades the request and feeds pad events into the session until
// the client hangs up or the server shuts down.
func (s *Server) handlePad(w http.ResponseWriter, r *http.Request) {
	// The control surface is typically a browser page served from elsewhere
	// on the LAN; the default bind is loopback, so origin checks add nothing.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("pad client handshake failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, span := observe.StartSpan(r.Context(), "remote.PadSession")
	defer span.End()

	s.metrics.ActivePadSessions.Add(ctx, 1)
	defer s.metrics.ActivePadSessions.Add(ctx, -1)

	log := observe.Logger(ctx)
	log.Info("pad client connected", "remote", r.RemoteAddr)

	if err := s.writeState(ctx, conn); err != nil {
		log.Warn("pad state frame failed", "error", err)
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("pad session closed by shutdown")
				return
			}
			// Client hangups surface as close errors; either way the
			// session is over.
			log.Info("pad client disconnected", "reason", err)
			return
		}
		s.dispatchEvent(ctx, data)
	}
}

// writeState sends the current session snapshot as the first frame.
func (s *Server) writeState(ctx context.Context, conn *websocket.Conn) error {
	st := s.app.State()
	data, err := json.Marshal(padState{
		Type:       "state",
		X:          st.Position.X,
		Y:          st.Position.Y,
		Archetype:  st.Archetype.String(),
		Brightness: st.Intensities.Brightness,
		Resonance:  st.Intensities.Resonance,
		Enabled:    st.Enabled,
	})
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, stateWriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

// dispatchEvent decodes one frame and applies it to the session. Malformed
// or unknown frames are logged and skipped; the connection stays up.
func (s *Server) dispatchEvent(ctx context.Context, data []byte) {
	var ev padEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		observe.Logger(ctx).Warn("pad event malformed, skipping", "error", err)
		return
	}
	switch ev.Type {
	case "coord":
		s.app.SetCoordinate(ctx, ev.X, ev.Y)
	case "archetype":
		s.app.SetArchetype(ctx, ev.Name)
	case "brightness":
		s.app.SetBrightness(ctx, ev.Value)
	case "resonance":
		s.app.SetResonance(ctx, ev.Value)
	default:
		observe.Logger(ctx).Warn("pad event type unknown, skipping", "type", ev.Type)
	}
}
