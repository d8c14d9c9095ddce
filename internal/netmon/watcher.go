package netmon

import "context"

// Watcher observes network device link state using platform-specific
// event mechanisms (netlink on Linux, interface polling elsewhere).
type Watcher interface {
	// Start begins watching for link-state changes.
	// Calls callback for each detected transition.
	// Blocks until ctx is cancelled or an error occurs.
	Start(ctx context.Context, callback func(DeviceEvent)) error
}
