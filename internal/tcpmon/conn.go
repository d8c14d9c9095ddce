package tcpmon

import "github.com/dmdmdm-nz/tcpmond/internal/netev"

// Conn is the monitor-visible surface of one TCP connection: the
// protocol state, the device the connection was last associated with,
// and the owning head of the connection's callback list.
//
// The callback list is mutated only under the stack's network lock.
type Conn struct {
	stack *Stack
	dev   *netev.Device
	state State

	events netev.CallbackList
}

// Device returns the network device backing the connection.
func (c *Conn) Device() *netev.Device { return c.dev }

// State returns the current protocol state.
func (c *Conn) State() State {
	c.stack.mu.Lock()
	defer c.stack.mu.Unlock()
	return c.state
}

// SetState records a protocol state transition. Called by the TCP
// engine; the monitor itself never writes the state.
func (c *Conn) SetState(st State) {
	c.stack.mu.Lock()
	c.state = st
	c.stack.mu.Unlock()
}

// Events exposes the callback list. Intended for the TCP engine's own
// dispatch path and for tests; mutation requires the network lock.
func (c *Conn) Events() *netev.CallbackList { return &c.events }

// ObserverCount returns the number of callback records on the
// connection, taking the network lock for the read.
func (c *Conn) ObserverCount() int {
	c.stack.mu.Lock()
	defer c.stack.mu.Unlock()
	return c.events.Len()
}
