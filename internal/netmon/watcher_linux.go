//go:build linux

package netmon

import (
	"context"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

type linuxWatcher struct {
	mu sync.Mutex
	up map[string]struct{}
}

// NewWatcher creates a Linux-specific watcher using netlink.
func NewWatcher() Watcher {
	return &linuxWatcher{
		up: make(map[string]struct{}),
	}
}

func (w *linuxWatcher) Start(ctx context.Context, callback func(DeviceEvent)) error {
	linkCh := make(chan netlink.LinkUpdate)
	linkDone := make(chan struct{})

	if err := netlink.LinkSubscribe(linkCh, linkDone); err != nil {
		return err
	}
	defer close(linkDone)

	// Seed the up-set so the first update after a flap is not mistaken
	// for a transition.
	if links, err := netlink.LinkList(); err == nil {
		w.mu.Lock()
		for _, l := range links {
			attrs := l.Attrs()
			if attrs.Flags&net.FlagUp != 0 {
				w.up[attrs.Name] = struct{}{}
			}
		}
		w.mu.Unlock()
	} else {
		log.WithError(err).Warn("Failed to list links, starting from an empty state")
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case update := <-linkCh:
			w.handleLinkUpdate(update, callback)
		}
	}
}

func (w *linuxWatcher) handleLinkUpdate(update netlink.LinkUpdate, callback func(DeviceEvent)) {
	attrs := update.Link.Attrs()
	name := attrs.Name
	index := attrs.Index
	isUp := attrs.Flags&net.FlagUp != 0

	w.mu.Lock()
	_, wasUp := w.up[name]
	if isUp {
		w.up[name] = struct{}{}
	} else {
		delete(w.up, name)
	}
	w.mu.Unlock()

	if isUp == wasUp {
		return
	}

	ev := DeviceEvent{DeviceName: name, Index: index}
	if isUp {
		ev.Type = DeviceUp
	} else {
		ev.Type = DeviceDown
	}

	log.WithFields(log.Fields{
		"device": name,
		"event":  ev.Type,
	}).Debug("Link state transition")

	callback(ev)
}
