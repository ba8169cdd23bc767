// Package relay implements a single-connection TCP relay that forwards bytes
// between one client and one backend, injecting a configurable artificial
// delay on the backend-to-client path. It is a test fixture for simulating
// slow or stalled backends, not a general purpose proxy: bytes are opaque,
// only one client is forwarded to at a time, and the delay sleep intentionally
// stalls the whole relay rather than a single connection pair.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/matst80/delayline/internal/delay"
	"github.com/matst80/delayline/internal/obs"
)

const DefaultChunkSize = 1024

// Config carries the addresses and limits for one relay instance.
type Config struct {
	ListenAddr  string // primary listener, where the client under test connects
	BackendAddr string // dialed once at startup, never re-dialed
	AdminAddr   string // admin listener; empty disables admin mode
	ChunkSize   int    // max bytes per forwarded read; defaults to DefaultChunkSize
}

// role is resolved once when a socket is registered, so the loop dispatches on
// a typed role instead of comparing socket identities per iteration.
type role int

const (
	roleClient role = iota + 1
	roleBackend
	roleAdmin
)

func (r role) String() string {
	switch r {
	case roleClient:
		return "client"
	case roleBackend:
		return "backend"
	case roleAdmin:
		return "admin"
	}
	return "unknown"
}

type eventKind int

const (
	evAccept eventKind = iota + 1
	evData
	evEOF
	evError
)

type event struct {
	kind eventKind
	role role
	conn net.Conn
	data []byte
	err  error
}

// Relay owns all sockets and the single event loop that serves them.
//
// Acceptor and reader goroutines funnel typed events into one unbuffered
// channel; the loop goroutine consumes one event at a time and is the only
// goroutine that touches the connection registry and applies the delay. The
// inline sleep in the backend-data branch therefore stalls handling of every
// other socket for its duration, which is the behavior the fixture exists to
// provide.
type Relay struct {
	cfg    Config
	engine *delay.Engine
	clk    clock.Clock

	ln      net.Listener
	adminLn net.Listener
	backend net.Conn

	events    chan event
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	started   time.Time

	// registry, owned exclusively by the loop goroutine
	client net.Conn
	admins map[net.Conn]struct{}

	// stats, readable from other goroutines via Snapshot
	clientActive    atomic.Bool
	adminCount      atomic.Int64
	accepts         atomic.Int64
	clientToBackend atomic.Int64
	backendToClient atomic.Int64
	dropped         atomic.Int64
}

// Option configures optional Relay behavior.
type Option func(*Relay)

// WithClock replaces the wall clock used for the delay sleep. Tests use a mock
// clock to observe the stall without waiting it out.
func WithClock(c clock.Clock) Option {
	return func(r *Relay) { r.clk = c }
}

func New(cfg Config, engine *delay.Engine, opts ...Option) *Relay {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	r := &Relay{
		cfg:    cfg,
		engine: engine,
		clk:    clock.New(),
		events: make(chan event),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		admins: make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start dials the backend, opens the listeners and launches the loop.
// It is non-blocking; a returned error means the relay cannot run at all
// (backend unreachable or a listen failure) and nothing was left open.
func (r *Relay) Start(ctx context.Context) error {
	backend, err := net.Dial("tcp", r.cfg.BackendAddr)
	if err != nil {
		return fmt.Errorf("dial backend %s: %w", r.cfg.BackendAddr, err)
	}
	ln, err := net.Listen("tcp", r.cfg.ListenAddr)
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("listen %s: %w", r.cfg.ListenAddr, err)
	}
	var adminLn net.Listener
	if r.cfg.AdminAddr != "" {
		adminLn, err = net.Listen("tcp", r.cfg.AdminAddr)
		if err != nil {
			_ = backend.Close()
			_ = ln.Close()
			return fmt.Errorf("listen admin %s: %w", r.cfg.AdminAddr, err)
		}
	}
	r.backend = backend
	r.ln = ln
	r.adminLn = adminLn
	r.started = time.Now()

	obs.Info("relay.backend.connected", obs.Fields{"backend": backend.RemoteAddr().String()})

	go r.acceptLoop(r.ln, roleClient)
	if r.adminLn != nil {
		go r.acceptLoop(r.adminLn, roleAdmin)
	}
	go r.readLoop(r.backend, roleBackend)
	go r.run(ctx)
	return nil
}

// Addr returns the primary listener address, usable after Start (supports ":0").
func (r *Relay) Addr() string {
	if r.ln == nil {
		return ""
	}
	return r.ln.Addr().String()
}

// AdminAddr returns the admin listener address, or "" when admin mode is off.
func (r *Relay) AdminAddr() string {
	if r.adminLn == nil {
		return ""
	}
	return r.adminLn.Addr().String()
}

// Close initiates shutdown. Safe to call more than once. The loop closes every
// tracked socket (both listeners, backend, client and admin connections) before
// Done is signalled.
func (r *Relay) Close() {
	r.closeOnce.Do(func() { close(r.quit) })
}

// Done is closed once the loop has exited and all sockets are closed.
func (r *Relay) Done() <-chan struct{} { return r.done }

// send hands an event to the loop, giving up when the relay is shutting down
// so acceptor/reader goroutines never leak on a closed loop.
func (r *Relay) send(ev event) {
	select {
	case r.events <- ev:
	case <-r.quit:
		if ev.kind == evAccept {
			_ = ev.conn.Close()
		}
	}
}

func (r *Relay) acceptLoop(ln net.Listener, rl role) {
	for {
		c, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				obs.Error("accept.temp", obs.Fields{"role": rl.String(), "err": err.Error()})
				continue
			}
			// listener closed
			return
		}
		r.send(event{kind: evAccept, role: rl, conn: c})
	}
}

// readLoop reads chunks of at most ChunkSize bytes and forwards each as one
// event, mirroring one readiness notification per loop iteration. The
// unbuffered events channel means a reader blocks while the loop is stalled in
// the delay sleep, so no data overtakes the stall.
func (r *Relay) readLoop(c net.Conn, rl role) {
	buf := make([]byte, r.cfg.ChunkSize)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			r.send(event{kind: evData, role: rl, conn: c, data: data})
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				r.send(event{kind: evEOF, role: rl, conn: c})
			case errors.Is(err, net.ErrClosed):
				// closed by the loop itself, nothing to report
			default:
				r.send(event{kind: evError, role: rl, conn: c, err: err})
			}
			return
		}
	}
}

func (r *Relay) run(ctx context.Context) {
	defer close(r.done)
	defer r.teardown()
	for {
		select {
		case <-ctx.Done():
			// unblock acceptor/reader goroutines parked in send
			r.Close()
			return
		case <-r.quit:
			return
		case ev := <-r.events:
			r.dispatch(ev)
		}
	}
}

// teardown closes every tracked socket: both listeners, the backend and
// client connections, and any open admin connections.
func (r *Relay) teardown() {
	if r.ln != nil {
		_ = r.ln.Close()
	}
	if r.adminLn != nil {
		_ = r.adminLn.Close()
	}
	if r.backend != nil {
		_ = r.backend.Close()
	}
	if r.client != nil {
		_ = r.client.Close()
		r.clientActive.Store(false)
	}
	for c := range r.admins {
		_ = c.Close()
	}
	r.adminCount.Store(0)
	obs.AdminConnections.Set(0)
	obs.Info("relay.closed", obs.Fields{"uptime_seconds": time.Since(r.started).Seconds()})
}

// Snapshot is a point-in-time view of the relay for the state endpoint.
type Snapshot struct {
	ClientConnected      bool    `json:"client_connected"`
	AdminConnections     int64   `json:"admin_connections"`
	ClientAccepts        int64   `json:"client_accepts"`
	DelayMs              float64 `json:"delay_ms"`
	BytesClientToBackend int64   `json:"bytes_client_to_backend"`
	BytesBackendToClient int64   `json:"bytes_backend_to_client"`
	BytesDropped         int64   `json:"bytes_dropped"`
	UptimeSeconds        float64 `json:"uptime_seconds"`
}

func (r *Relay) Snapshot() Snapshot {
	return Snapshot{
		ClientConnected:      r.clientActive.Load(),
		AdminConnections:     r.adminCount.Load(),
		ClientAccepts:        r.accepts.Load(),
		DelayMs:              float64(r.engine.Get()) / float64(time.Millisecond),
		BytesClientToBackend: r.clientToBackend.Load(),
		BytesBackendToClient: r.backendToClient.Load(),
		BytesDropped:         r.dropped.Load(),
		UptimeSeconds:        time.Since(r.started).Seconds(),
	}
}
