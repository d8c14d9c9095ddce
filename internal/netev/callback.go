package netev

// Handler is invoked when an event matching the callback's filter is
// delivered on a connection. It receives the full event bitset by value
// and returns the bits that remain visible to subsequent handlers in the
// same walk.
//
// Handlers run with the network lock held and must not block.
type Handler func(dev *Device, conn any, priv any, flags Event) Event

// Callback is one observer's subscription to a connection's event
// stream. Records are pool-allocated and linked into the owning
// connection's list; the connection owns every record reachable from its
// head.
type Callback struct {
	// Filter selects which event bits invoke Event.
	Filter Event

	// Priv is an opaque pointer back to the subscriber, typically a
	// socket. A nil Priv with a live Event is a no-op subscription
	// (see LostConnection nullification).
	Priv any

	// Event handles a delivery. Nil disables the record without
	// unlinking it.
	Event Handler

	next *Callback
}

// CallbackList is the head of a connection's singly-linked callback
// list. Records are prepended on allocation, so walk order is reverse
// insertion order. All mutation happens under the network lock.
type CallbackList struct {
	head *Callback
}

// Head returns the first record, or nil if the list is empty.
func (l *CallbackList) Head() *Callback { return l.head }

// Empty reports whether the list holds no records.
func (l *CallbackList) Empty() bool { return l.head == nil }

// Len counts the records in the list.
func (l *CallbackList) Len() int {
	n := 0
	for cb := l.head; cb != nil; cb = cb.next {
		n++
	}
	return n
}

// Find returns the first record whose Priv equals priv, or nil.
//
// The caller holds the network lock.
func (l *CallbackList) Find(priv any) *Callback {
	for cb := l.head; cb != nil; cb = cb.next {
		if cb.Priv == priv {
			return cb
		}
	}
	return nil
}

// Dispatch walks the list and invokes every record whose filter matches
// flags. Each handler's return value replaces flags for the rest of the
// walk. The next pointer is captured before the handler runs, so a
// handler may free its own record.
//
// The caller holds the network lock.
func (l *CallbackList) Dispatch(dev *Device, conn any, flags Event) Event {
	cb := l.head
	for cb != nil {
		next := cb.next
		if cb.Event != nil && flags.Has(cb.Filter) {
			flags = cb.Event(dev, conn, cb.Priv, flags)
		}
		cb = next
	}
	return flags
}

// unlink removes cb from the list if present and reports whether it was
// found.
func (l *CallbackList) unlink(cb *Callback) bool {
	if l.head == cb {
		l.head = cb.next
		return true
	}
	for prev := l.head; prev != nil; prev = prev.next {
		if prev.next == cb {
			prev.next = cb.next
			return true
		}
	}
	return false
}

// prepend pushes cb onto the head of the list.
func (l *CallbackList) prepend(cb *Callback) {
	cb.next = l.head
	l.head = cb
}
