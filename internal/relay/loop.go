package relay

import (
	"time"

	"github.com/matst80/delayline/internal/admin"
	"github.com/matst80/delayline/internal/obs"
)

// dispatch handles exactly one event. It runs on the loop goroutine only.
func (r *Relay) dispatch(ev event) {
	switch ev.role {
	case roleClient:
		if ev.kind == evAccept {
			r.registerClient(ev)
			return
		}
		r.onClient(ev)
	case roleBackend:
		r.onBackend(ev)
	case roleAdmin:
		if ev.kind == evAccept {
			r.registerAdmin(ev)
			return
		}
		r.onAdmin(ev)
	}
}

// registerClient makes the accepted connection the active forwarding target.
// A new accept while a client is active replaces it; the previous connection
// is closed rather than left half-tracked.
func (r *Relay) registerClient(ev event) {
	if r.client != nil {
		obs.Warn("client.replaced", obs.Fields{"old": r.client.RemoteAddr().String(), "new": ev.conn.RemoteAddr().String()})
		_ = r.client.Close()
	}
	r.client = ev.conn
	r.accepts.Add(1)
	r.clientActive.Store(true)
	obs.ClientAcceptsTotal.Inc()
	obs.Info("client.connected", obs.Fields{"remote": ev.conn.RemoteAddr().String()})
	go r.readLoop(ev.conn, roleClient)
}

func (r *Relay) registerAdmin(ev event) {
	r.admins[ev.conn] = struct{}{}
	r.adminCount.Store(int64(len(r.admins)))
	obs.AdminConnections.Set(float64(len(r.admins)))
	obs.Info("admin.connected", obs.Fields{"remote": ev.conn.RemoteAddr().String()})
	go r.readLoop(ev.conn, roleAdmin)
}

// onBackend applies the delay and forwards to the active client. The sleep
// happens inline on the loop goroutine: while it runs, no other socket is
// serviced. That whole-relay stall is the point of the fixture.
func (r *Relay) onBackend(ev event) {
	switch ev.kind {
	case evData:
		d := r.engine.Get()
		start := r.clk.Now()
		r.clk.Sleep(d)
		stalled := r.clk.Since(start)
		obs.ForwardStallSeconds.Observe(stalled.Seconds())
		obs.Debug("forward.stall", obs.Fields{"stalled_ms": float64(stalled) / float64(time.Millisecond)})
		if r.client == nil {
			r.dropped.Add(int64(len(ev.data)))
			obs.DroppedBytesTotal.Add(float64(len(ev.data)))
			obs.Debug("forward.drop", obs.Fields{"bytes": len(ev.data)})
			return
		}
		if _, err := r.client.Write(ev.data); err != nil {
			obs.Error("forward.backend_to_client", obs.Fields{"err": err.Error()})
			obs.ErrorsTotal.WithLabelValues("write_client").Inc()
			return
		}
		r.backendToClient.Add(int64(len(ev.data)))
		obs.ForwardedBytesTotal.WithLabelValues("backend_to_client").Add(float64(len(ev.data)))
	case evEOF:
		// No reconnect logic: the backend socket stays as-is and later
		// client-to-backend writes surface errors.
		obs.Warn("backend.closed", obs.Fields{"uptime_seconds": time.Since(r.started).Seconds()})
	case evError:
		obs.Error("backend.read", obs.Fields{"err": ev.err.Error()})
		obs.ErrorsTotal.WithLabelValues("read_backend").Inc()
	}
}

func (r *Relay) onClient(ev event) {
	if ev.conn != r.client {
		// event from a connection that was already replaced or deregistered
		obs.Debug("client.stale_event", obs.Fields{})
		_ = ev.conn.Close()
		return
	}
	switch ev.kind {
	case evData:
		if _, err := r.backend.Write(ev.data); err != nil {
			obs.Error("forward.client_to_backend", obs.Fields{"err": err.Error()})
			obs.ErrorsTotal.WithLabelValues("write_backend").Inc()
			return
		}
		r.clientToBackend.Add(int64(len(ev.data)))
		obs.ForwardedBytesTotal.WithLabelValues("client_to_backend").Add(float64(len(ev.data)))
		obs.Debug("forward.client_to_backend", obs.Fields{"bytes": len(ev.data)})
	case evEOF:
		obs.Info("client.disconnected", obs.Fields{"uptime_seconds": time.Since(r.started).Seconds()})
		r.deregisterClient()
	case evError:
		obs.Error("client.read", obs.Fields{"err": ev.err.Error()})
		obs.ErrorsTotal.WithLabelValues("read_client").Inc()
		r.deregisterClient()
	}
}

// deregisterClient closes only the client socket; the backend connection and
// the primary listener stay up so a later client can connect and resume.
func (r *Relay) deregisterClient() {
	_ = r.client.Close()
	r.client = nil
	r.clientActive.Store(false)
}

// onAdmin interprets one read chunk as one command attempt. Rejected commands
// are logged and ignored; nothing is ever written back to the admin peer.
func (r *Relay) onAdmin(ev event) {
	switch ev.kind {
	case evData:
		cmd, err := admin.Parse(ev.data)
		if err != nil {
			obs.Warn("admin.command.rejected", obs.Fields{"input": string(ev.data), "err": err.Error()})
			obs.AdminCommandsTotal.WithLabelValues("rejected").Inc()
			return
		}
		if err := r.engine.Set(cmd.Delay); err != nil {
			obs.Warn("admin.command.rejected", obs.Fields{"input": string(ev.data), "err": err.Error()})
			obs.AdminCommandsTotal.WithLabelValues("rejected").Inc()
			return
		}
		obs.Info("admin.delay.set", obs.Fields{"delay_ms": float64(cmd.Delay) / float64(time.Millisecond)})
		obs.AdminCommandsTotal.WithLabelValues("applied").Inc()
	case evEOF, evError:
		if ev.kind == evError {
			obs.Error("admin.read", obs.Fields{"err": ev.err.Error()})
			obs.ErrorsTotal.WithLabelValues("read_admin").Inc()
		}
		delete(r.admins, ev.conn)
		_ = ev.conn.Close()
		r.adminCount.Store(int64(len(r.admins)))
		obs.AdminConnections.Set(float64(len(r.admins)))
	}
}
