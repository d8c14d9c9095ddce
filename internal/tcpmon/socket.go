package tcpmon

import (
	"strings"

	"github.com/google/uuid"
)

// SockFlags is the status bitset of a socket handle.
type SockFlags uint8

const (
	// SockBound: the socket has a local address.
	SockBound SockFlags = 1 << iota

	// SockConnected: the socket is currently usable for data.
	SockConnected

	// SockClosed: a graceful end-of-stream was observed. Distinct from
	// rude loss, where both SockConnected and SockClosed end up clear.
	SockClosed

	// SockNonblock: the socket is in nonblocking mode.
	SockNonblock
)

// Has reports whether any bit of mask is set in f.
func (f SockFlags) Has(mask SockFlags) bool { return f&mask != 0 }

func (f SockFlags) String() string {
	if f == 0 {
		return "NONE"
	}
	names := []struct {
		bit  SockFlags
		name string
	}{
		{SockBound, "BOUND"},
		{SockConnected, "CONNECTED"},
		{SockClosed, "CLOSED"},
		{SockNonblock, "NONBLOCK"},
	}
	var parts []string
	for _, n := range names {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Socket is the application-visible handle to a connection. Several
// sockets may dup-share one Conn; the reference is non-owning. The
// monitor mutates only the flag bitset and the last error, always under
// the stack's network lock.
type Socket struct {
	// ID identifies this handle across dups of the same connection.
	ID uuid.UUID

	stack *Stack
	conn  *Conn
	flags SockFlags
	err   error // last socket error
}

// Conn returns the connection this socket references.
func (s *Socket) Conn() *Conn { return s.conn }

// Flags returns a snapshot of the socket status bitset.
func (s *Socket) Flags() SockFlags {
	s.stack.mu.Lock()
	defer s.stack.mu.Unlock()
	return s.flags
}

// Err returns the last socket error, nil if none. A gracefully closed
// socket carries no error; readers see end-of-stream through the flag
// pair instead.
func (s *Socket) Err() error {
	s.stack.mu.Lock()
	defer s.stack.mu.Unlock()
	return s.err
}

// SetError records err as the socket's last error.
//
// The caller holds the network lock.
func (s *Socket) SetError(err error) { s.err = err }
