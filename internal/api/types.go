package api

// SocketInfo is the wire form of one socket handle's observable state.
type SocketInfo struct {
	ID        string `json:"id"`
	Device    string `json:"device"`
	State     string `json:"connState"`
	Flags     string `json:"flags"`
	Connected bool   `json:"connected"`
	Closed    bool   `json:"closed"`
	LastError string `json:"lastError,omitempty"`
}

// ConnInfo is the wire form of one connection record.
type ConnInfo struct {
	Device    string `json:"device"`
	State     string `json:"state"`
	Observers int    `json:"observers"`
}

// DeviceInfo is the wire form of one registered network device.
type DeviceInfo struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// StateEventInfo is the wire form of one monitor state transition.
type StateEventInfo struct {
	SocketID string `json:"socketId"`
	Device   string `json:"device"`
	Events   string `json:"events"`
	Flags    string `json:"flags"`
}
