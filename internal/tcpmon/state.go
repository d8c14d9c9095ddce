package tcpmon

// State is the protocol state of a TCP connection. It is owned by the
// TCP engine; the monitor only reads it to decide whether starting
// monitoring is legal.
type State uint8

const (
	StateClosed State = iota
	StateListen
	StateSynSent
	StateSynRcvd
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateClosing
	StateTimeWait
	StateCloseWait
	StateLastAck
)

var stateNames = [...]string{
	StateClosed:      "CLOSED",
	StateListen:      "LISTEN",
	StateSynSent:     "SYN_SENT",
	StateSynRcvd:     "SYN_RCVD",
	StateEstablished: "ESTABLISHED",
	StateFinWait1:    "FIN_WAIT_1",
	StateFinWait2:    "FIN_WAIT_2",
	StateClosing:     "CLOSING",
	StateTimeWait:    "TIME_WAIT",
	StateCloseWait:   "CLOSE_WAIT",
	StateLastAck:     "LAST_ACK",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}
