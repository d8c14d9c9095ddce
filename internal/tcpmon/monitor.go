package tcpmon

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/tcpmond/internal/netev"
)

// ErrNotConnected is returned by StartMonitor when the connection was
// already unusable before monitoring could begin.
var ErrNotConnected = errors.New("socket is not connected")

// StartMonitor sets a socket up to observe connection state changes.
//
// If the connection was already torn down (for example on another dup
// before accept got this far), a CLOSE event is synthesized for every
// registered observer, the calling socket is marked gracefully closed,
// and ErrNotConnected is returned.
//
// Callback pool exhaustion is not an error: the socket is left silently
// unmonitored and StartMonitor still succeeds.
func (s *Stack) StartMonitor(sock *Socket) error {
	conn := sock.conn

	s.mu.Lock()

	// Nonblocking connect still in flight?
	nonblockConn := conn.state == StateSynSent && sock.flags.Has(SockNonblock)

	// The connection may have been closed before any callback was
	// registered, e.g. lost before accept registered the monitor.
	if !(conn.state == StateEstablished || conn.state == StateSynRcvd || nonblockConn) {
		// Synthesize the CLOSE event now. The walk cannot reach the
		// calling socket, which has no callback yet, so mark it
		// closed explicitly.
		s.shutdownMonitorLocked(conn, netev.Close)
		s.closeConnection(sock, netev.Close)
		s.mu.Unlock()
		return errors.WithStack(ErrNotConnected)
	}

	filter := netev.DisconnEvents
	if nonblockConn {
		filter |= netev.Connected
	}

	// A second start on the same socket updates the existing record
	// rather than growing the list.
	if cb := conn.events.Find(sock); cb != nil {
		cb.Filter = filter
		s.mu.Unlock()
		return nil
	}

	cb := conn.dev.AllocCallback(&conn.events)
	if cb != nil {
		cb.Event = s.monitorEvent
		cb.Priv = sock
		cb.Filter = filter
	} else {
		log.WithFields(log.Fields{
			"socket": sock.ID,
			"device": conn.dev.Name,
		}).Warn("Callback pool exhausted, socket left unmonitored")
	}

	s.mu.Unlock()
	return nil
}

// StopMonitor stops monitoring for every socket associated with a
// connection. The TCP engine calls this when the connection itself is
// being torn down; flags says how (CLOSE or ABORT).
func (s *Stack) StopMonitor(conn *Conn, flags netev.Event) {
	s.mu.Lock()
	s.shutdownMonitorLocked(conn, flags)
	s.mu.Unlock()
}

// CloseMonitor handles one dup'd socket being closed while the
// connection and its other sockets live on: the socket's own callback
// record is reclaimed and the socket is marked gracefully closed. Other
// dups sharing the connection are not notified; the close of one handle
// does not affect them.
func (s *Stack) CloseMonitor(sock *Socket) {
	conn := sock.conn

	s.mu.Lock()

	if cb := conn.events.Find(sock); cb != nil {
		conn.dev.FreeCallback(cb, &conn.events)
	}

	// Make sure this socket is explicitly marked as closed.
	s.closeConnection(sock, netev.Close)

	s.mu.Unlock()
}

// LostConnection reports a loss-of-connection discovered by the TCP
// engine while it already holds the socket's callback record. The record
// is nullified before the list walk so that shutdown does not recurse
// into the handler that called us, then this socket is marked directly
// (its nullified record will not see the event) and every other socket
// is informed.
func (s *Stack) LostConnection(sock *Socket, cb *netev.Callback, flags netev.Event) {
	s.mu.Lock()

	if cb != nil {
		cb.Filter = 0
		cb.Priv = nil
		cb.Event = nil
	}

	s.closeConnection(sock, flags)
	s.shutdownMonitorLocked(sock.conn, flags)

	s.mu.Unlock()
}

// shutdownMonitorLocked delivers flags to every callback on the
// connection, informing all sockets including dup'd copies, then frees
// every callback record back to the device pool.
//
// The caller holds the network lock.
func (s *Stack) shutdownMonitorLocked(conn *Conn, flags netev.Event) {
	s.DeliverLocked(conn, flags)
	conn.dev.FreeCallbacks(&conn.events)
}

// monitorEvent is the handler registered by StartMonitor.
func (s *Stack) monitorEvent(dev *netev.Device, conn any, priv any, flags netev.Event) netev.Event {
	if priv == nil {
		return flags
	}
	sock := priv.(*Socket)

	log.WithFields(log.Fields{
		"socket": sock.ID,
		"events": flags.String(),
		"flags":  sock.flags.String(),
	}).Trace("Connection event")

	if flags.Has(netev.DisconnEvents) {
		// Any loss-of-connection event. A delivery carrying both a
		// disconnect and CONNECTED resolves to the disconnect.
		s.closeConnection(sock, flags)
	} else if flags.Has(netev.Connected) {
		// The socket is successfully connected.
		sock.err = nil
		sock.flags |= SockBound | SockConnected
		sock.flags &^= SockClosed
		s.publish(StateEvent{
			SocketID: sock.ID,
			Device:   dev.Name,
			Events:   flags,
			Flags:    sock.flags,
		})
	}

	return flags
}

// closeConnection records a loss of connection on the socket's status
// bitset:
//
//	SockConnected=0, SockClosed=1 - gracefully disconnected, reads see EOF
//	SockConnected=0, SockClosed=0 - rudely disconnected, reads fail
//
// A delivery carrying both CLOSE and a rude bit resolves to graceful: a
// peer cannot both FIN and RST, and a device loss during a graceful
// close is reported as graceful.
//
// The caller holds the network lock.
func (s *Stack) closeConnection(sock *Socket, flags netev.Event) {
	if flags.Has(netev.Close) {
		// Graceful close is end-of-file, not an error.
		sock.flags &^= SockConnected
		sock.flags |= SockClosed
	} else if flags.Has(netev.Abort | netev.TimedOut | netev.NetdevDown) {
		// Less than graceful; subsequent operations report an error.
		sock.flags &^= SockConnected | SockClosed
		sock.err = rudeError(flags)
	}

	s.publish(StateEvent{
		SocketID: sock.ID,
		Device:   sock.conn.dev.Name,
		Events:   flags,
		Flags:    sock.flags,
	})
}
