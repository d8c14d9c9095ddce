package netmon

type EventType string

const (
	DeviceUp   EventType = "DEVICE_UP"
	DeviceDown EventType = "DEVICE_DOWN"
)

// DeviceEvent reports a link-state transition of one network device.
type DeviceEvent struct {
	Type       EventType
	DeviceName string
	Index      int
}
