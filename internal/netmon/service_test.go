package netmon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmdmdm-nz/tcpmond/internal/netev"
	"github.com/dmdmdm-nz/tcpmond/internal/tcpmon"
)

// mockWatcher is a test double for the Watcher interface
type mockWatcher struct {
	mu       sync.Mutex
	callback func(DeviceEvent)
	started  bool
}

func newMockWatcher() *mockWatcher {
	return &mockWatcher{}
}

func (m *mockWatcher) Start(ctx context.Context, callback func(DeviceEvent)) error {
	m.mu.Lock()
	m.callback = callback
	m.started = true
	m.mu.Unlock()

	<-ctx.Done()
	return nil
}

func (m *mockWatcher) SendEvent(ev DeviceEvent) {
	m.mu.Lock()
	cb := m.callback
	m.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// newTestService creates a Service with a mock watcher for testing
func newTestService(stack *tcpmon.Stack, watcher *mockWatcher) *Service {
	return &Service{
		stack:   stack,
		watcher: watcher,
		devices: make(map[string]*netev.Device),
	}
}

func TestService_EnsureDeviceDeduplicates(t *testing.T) {
	s := newTestService(tcpmon.NewStack(), newMockWatcher())

	dev1 := s.EnsureDevice("eth0", 1, 4)
	dev2 := s.EnsureDevice("eth0", 1, 4)
	assert.Same(t, dev1, dev2)
	assert.Len(t, s.Devices(), 1)

	got, ok := s.Device("eth0")
	require.True(t, ok)
	assert.Same(t, dev1, got)

	_, ok = s.Device("eth1")
	assert.False(t, ok)
}

func TestService_DeviceDownTearsDownConnections(t *testing.T) {
	stack := tcpmon.NewStack()
	defer func() { _ = stack.Close() }()
	watcher := newMockWatcher()
	s := newTestService(stack, watcher)

	dev := s.EnsureDevice("eth0", 1, 4)
	conn := stack.NewConn(dev)
	conn.SetState(tcpmon.StateEstablished)
	sock := stack.NewSocket(conn, false)
	require.NoError(t, stack.StartMonitor(sock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		watcher.mu.Lock()
		defer watcher.mu.Unlock()
		return watcher.started
	}, time.Second, 10*time.Millisecond)

	watcher.SendEvent(DeviceEvent{Type: DeviceDown, DeviceName: "eth0", Index: 1})

	// Rude disconnect: both status bits clear, callback list reaped.
	flags := sock.Flags()
	assert.False(t, flags.Has(tcpmon.SockConnected))
	assert.False(t, flags.Has(tcpmon.SockClosed))
	assert.Error(t, sock.Err())
	assert.True(t, conn.Events().Empty())

	cancel()
	<-done
}

func TestService_UnknownDeviceIgnored(t *testing.T) {
	stack := tcpmon.NewStack()
	defer func() { _ = stack.Close() }()
	watcher := newMockWatcher()
	s := newTestService(stack, watcher)

	dev := s.EnsureDevice("eth0", 1, 4)
	conn := stack.NewConn(dev)
	conn.SetState(tcpmon.StateEstablished)
	sock := stack.NewSocket(conn, false)
	require.NoError(t, stack.StartMonitor(sock))

	// No Start needed; drive the handler directly.
	s.handleEvent(DeviceEvent{Type: DeviceDown, DeviceName: "wlan0", Index: 9})
	assert.Equal(t, 1, conn.Events().Len())

	// Up transitions never touch connections either.
	s.handleEvent(DeviceEvent{Type: DeviceUp, DeviceName: "eth0", Index: 1})
	assert.Equal(t, 1, conn.Events().Len())
}
