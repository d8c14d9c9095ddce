package netev

import "strings"

// Event is a bitset of connection events. Several bits may be OR'd into a
// single delivery.
type Event uint16

const (
	// Connected: the three-way handshake completed, or a nonblocking
	// connect succeeded.
	Connected Event = 1 << iota

	// Close: the peer performed a graceful shutdown (FIN received).
	Close

	// Abort: the peer sent RST, or a local abort was raised.
	Abort

	// TimedOut: the connection was aborted locally after too many
	// retransmissions.
	TimedOut

	// NetdevDown: the network device backing the connection went down.
	NetdevDown
)

// DisconnEvents collects every loss-of-connection event.
const DisconnEvents = Close | Abort | TimedOut | NetdevDown

// Has reports whether any bit of mask is set in e.
func (e Event) Has(mask Event) bool { return e&mask != 0 }

func (e Event) String() string {
	if e == 0 {
		return "NONE"
	}
	names := []struct {
		bit  Event
		name string
	}{
		{Connected, "CONNECTED"},
		{Close, "CLOSE"},
		{Abort, "ABORT"},
		{TimedOut, "TIMEDOUT"},
		{NetdevDown, "NETDEV_DOWN"},
	}
	var parts []string
	for _, n := range names {
		if e&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
