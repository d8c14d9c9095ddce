package netmon

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/tcpmond/internal/netev"
	"github.com/dmdmdm-nz/tcpmond/internal/tcpmon"
)

// Service tracks the network devices connections may be bound to and
// couples OS link-state transitions to the connection monitor: when a
// registered device goes down, every connection bound to it receives
// NETDEV_DOWN through the stack.
type Service struct {
	stack   *tcpmon.Stack
	watcher Watcher

	mu      sync.Mutex
	devices map[string]*netev.Device
}

func NewService(stack *tcpmon.Stack) *Service {
	return &Service{
		stack:   stack,
		watcher: NewWatcher(),
		devices: make(map[string]*netev.Device),
	}
}

// EnsureDevice returns the registered device named name, creating it
// with a callback pool of poolSize records if it does not exist yet.
func (s *Service) EnsureDevice(name string, index, poolSize int) *netev.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dev, ok := s.devices[name]; ok {
		return dev
	}
	dev := netev.NewDevice(name, index, poolSize)
	s.devices[name] = dev

	log.WithFields(log.Fields{
		"device": name,
		"index":  index,
	}).Info("Registered network device")
	return dev
}

// Device looks up a registered device by name.
func (s *Service) Device(name string) (*netev.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev, ok := s.devices[name]
	return dev, ok
}

// Devices returns a snapshot of the registered devices.
func (s *Service) Devices() []*netev.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*netev.Device, 0, len(s.devices))
	for _, dev := range s.devices {
		out = append(out, dev)
	}
	return out
}

// Start runs the platform watcher and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info("Starting network device monitoring service")
	defer log.Info("Stopping network device monitoring service")

	return s.watcher.Start(ctx, s.handleEvent)
}

func (s *Service) Close() error { return nil }

func (s *Service) handleEvent(ev DeviceEvent) {
	if ev.Type != DeviceDown {
		return
	}

	s.mu.Lock()
	dev, ok := s.devices[ev.DeviceName]
	s.mu.Unlock()
	if !ok {
		// Not a device any connection is bound to.
		return
	}

	log.WithField("device", ev.DeviceName).Info("Network device went down")
	s.stack.DeviceDown(dev)
}
