package netev

// DefaultPoolSize is the number of callback records a device carries
// when no explicit size is given.
const DefaultPoolSize = 16

// Device describes one network device. Each device owns a fixed-size
// pool of callback records; connections bound to the device draw their
// subscriptions from it.
//
// Pool state is mutated only under the network lock.
type Device struct {
	// Name is the interface name, e.g. "eth0".
	Name string

	// Index is the OS interface index, zero for synthetic devices.
	Index int

	pool []Callback
	free *Callback
}

// NewDevice creates a device with a callback pool of poolSize records.
// A poolSize of zero or less selects DefaultPoolSize.
func NewDevice(name string, index, poolSize int) *Device {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	d := &Device{
		Name:  name,
		Index: index,
		pool:  make([]Callback, poolSize),
	}
	for i := range d.pool {
		d.pool[i].next = d.free
		d.free = &d.pool[i]
	}
	return d
}

// AllocCallback takes a record from the device pool and prepends it to
// list. It returns nil when the pool is exhausted; callers must tolerate
// that and degrade to unmonitored operation.
//
// The caller holds the network lock.
func (d *Device) AllocCallback(list *CallbackList) *Callback {
	cb := d.free
	if cb == nil {
		return nil
	}
	d.free = cb.next
	cb.next = nil
	list.prepend(cb)
	return cb
}

// FreeCallback unlinks cb from list, clears it, and returns it to the
// device pool. Freeing a record that was already unlinked is harmless.
//
// The caller holds the network lock.
func (d *Device) FreeCallback(cb *Callback, list *CallbackList) {
	if cb == nil {
		return
	}
	list.unlink(cb)
	*cb = Callback{next: d.free}
	d.free = cb
}

// FreeCallbacks reaps every record in list back into the device pool.
//
// The caller holds the network lock.
func (d *Device) FreeCallbacks(list *CallbackList) {
	for list.head != nil {
		d.FreeCallback(list.head, list)
	}
}
