package tcpmon

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/tcpmond/internal/netev"
	"github.com/dmdmdm-nz/tcpmond/internal/runtime"
)

// StateEvent is published on the observability tap whenever the monitor
// changes a socket's status bitset. Taps sit outside the delivery path:
// subscribers never feed back into dispatch.
type StateEvent struct {
	SocketID uuid.UUID
	Device   string
	Events   netev.Event // delivery that caused the transition, zero in snapshots
	Flags    SockFlags   // resulting socket status bitset
}

// Stack owns the network lock, the connection registry, and the state
// tap. One Stack corresponds to one network stack instance; tests create
// their own.
//
// All monitor entry points serialize on the network lock. Callbacks run
// synchronously under it and must not block.
type Stack struct {
	mu      sync.Mutex // the network lock
	conns   map[*Conn]struct{}
	sockets map[uuid.UUID]*Socket

	subsMu           sync.Mutex
	subs             map[int]*runtime.SubQueue[StateEvent]
	nextSubscriberID int
	closed           bool
}

func NewStack() *Stack {
	return &Stack{
		conns:   make(map[*Conn]struct{}),
		sockets: make(map[uuid.UUID]*Socket),
		subs:    make(map[int]*runtime.SubQueue[StateEvent]),
	}
}

// NewConn registers a connection bound to dev. The connection starts in
// StateClosed; the TCP engine drives its state from there.
func (s *Stack) NewConn(dev *netev.Device) *Conn {
	c := &Conn{stack: s, dev: dev}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	return c
}

// FreeConn removes a connection from the registry. It fails while
// callback records remain in the connection's list; callers must stop
// monitoring first.
func (s *Stack) FreeConn(c *Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !c.events.Empty() {
		return errors.Errorf("connection on %s still has %d registered callbacks",
			c.dev.Name, c.events.Len())
	}
	delete(s.conns, c)
	return nil
}

// NewSocket creates a socket handle referencing c. Many sockets may
// reference one connection (dup semantics); the reference is non-owning.
func (s *Stack) NewSocket(c *Conn, nonblock bool) *Socket {
	sock := &Socket{ID: uuid.New(), stack: s, conn: c}
	if nonblock {
		sock.flags |= SockNonblock
	}
	s.mu.Lock()
	s.sockets[sock.ID] = sock
	s.mu.Unlock()
	return sock
}

// ReleaseSocket drops a socket handle from the registry. The socket
// layer calls this after CloseMonitor, when the handle is about to be
// freed.
func (s *Stack) ReleaseSocket(sock *Socket) {
	s.mu.Lock()
	delete(s.sockets, sock.ID)
	s.mu.Unlock()
}

// Deliver raises an event bitset on a connection: it takes the network
// lock and walks the connection's callback list. This is the entry the
// TCP engine and the device watcher use to report events.
func (s *Stack) Deliver(c *Conn, flags netev.Event) netev.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.DeliverLocked(c, flags)
}

// DeliverLocked is Deliver for callers already holding the network lock,
// such as handlers running inside a dispatch.
func (s *Stack) DeliverLocked(c *Conn, flags netev.Event) netev.Event {
	log.WithFields(log.Fields{
		"device": c.dev.Name,
		"events": flags.String(),
	}).Trace("Dispatching connection events")
	return c.events.Dispatch(c.dev, c, flags)
}

// DeviceDown reports that dev went down. Every connection bound to dev
// receives NETDEV_DOWN and has its monitoring torn down; the TCP engine
// is expected to abort the connections separately.
func (s *Stack) DeviceDown(dev *netev.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		if c.dev != dev {
			continue
		}
		log.WithField("device", dev.Name).Debug("Raising NETDEV_DOWN on connection")
		s.shutdownMonitorLocked(c, netev.NetdevDown)
	}
}

// Subscribe registers a tap on socket state transitions. The current
// state of every registered socket is replayed first as snapshot events,
// then live transitions follow. The returned closure unsubscribes.
func (s *Stack) Subscribe() (<-chan StateEvent, func()) {
	s.mu.Lock()
	snapshot := make([]StateEvent, 0, len(s.sockets))
	for _, sock := range s.sockets {
		snapshot = append(snapshot, StateEvent{
			SocketID: sock.ID,
			Device:   sock.conn.dev.Name,
			Flags:    sock.flags,
		})
	}
	s.mu.Unlock()

	sub := runtime.NewSubQueue[StateEvent](len(snapshot) + 8)

	s.subsMu.Lock()
	id := s.nextSubscriberID
	s.nextSubscriberID++
	s.subs[id] = sub
	s.subsMu.Unlock()

	for _, ev := range snapshot {
		sub.SnapshotSend(ev)
	}
	sub.SetPaused(false)

	unsub := func() {
		s.subsMu.Lock()
		if q, ok := s.subs[id]; ok {
			delete(s.subs, id)
			q.Close()
		}
		s.subsMu.Unlock()
	}
	return sub.Chan(), unsub
}

// Close shuts down every tap subscriber.
func (s *Stack) Close() error {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, q := range s.subs {
		q.Close()
		delete(s.subs, id)
	}
	return nil
}

// publish fans a state transition out to tap subscribers. Enqueue never
// blocks, so holding the network lock here is safe.
func (s *Stack) publish(ev StateEvent) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, sub := range s.subs {
		sub.Enqueue(ev)
	}
}

// Conns returns a snapshot of the registered connections.
func (s *Stack) Conns() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Sockets returns a snapshot of the registered socket handles.
func (s *Stack) Sockets() []*Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Socket, 0, len(s.sockets))
	for _, sock := range s.sockets {
		out = append(out, sock)
	}
	return out
}
