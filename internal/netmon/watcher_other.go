//go:build !linux

package netmon

import (
	"context"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const pollInterval = 2 * time.Second

// pollWatcher is the fallback for platforms without a link event
// source: it polls the interface table and diffs up/down state.
type pollWatcher struct {
	mu sync.Mutex
	up map[string]int // name -> index
}

func NewWatcher() Watcher {
	return &pollWatcher{
		up: make(map[string]int),
	}
}

func (w *pollWatcher) Start(ctx context.Context, callback func(DeviceEvent)) error {
	w.poll(nil) // seed without emitting

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.poll(callback)
		}
	}
}

func (w *pollWatcher) poll(callback func(DeviceEvent)) {
	ifaces, err := net.Interfaces()
	if err != nil {
		log.WithError(err).Error("Failed to list network interfaces")
		return
	}

	seen := make(map[string]int, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp != 0 {
			seen[iface.Name] = iface.Index
		}
	}

	w.mu.Lock()
	prev := w.up
	w.up = seen
	w.mu.Unlock()

	if callback == nil {
		return
	}

	for name, index := range seen {
		if _, ok := prev[name]; !ok {
			callback(DeviceEvent{Type: DeviceUp, DeviceName: name, Index: index})
		}
	}
	for name, index := range prev {
		if _, ok := seen[name]; !ok {
			callback(DeviceEvent{Type: DeviceDown, DeviceName: name, Index: index})
		}
	}
}
