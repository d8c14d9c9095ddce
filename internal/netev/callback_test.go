package netev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevice_AllocPrepends(t *testing.T) {
	dev := NewDevice("eth0", 1, 4)
	var list CallbackList

	cb1 := dev.AllocCallback(&list)
	require.NotNil(t, cb1)
	cb2 := dev.AllocCallback(&list)
	require.NotNil(t, cb2)

	// Most recent allocation sits at the head.
	assert.Same(t, cb2, list.Head())
	assert.Equal(t, 2, list.Len())
}

func TestDevice_PoolExhaustion(t *testing.T) {
	dev := NewDevice("eth0", 1, 2)
	var list CallbackList

	require.NotNil(t, dev.AllocCallback(&list))
	require.NotNil(t, dev.AllocCallback(&list))
	assert.Nil(t, dev.AllocCallback(&list), "exhausted pool should return nil")

	// Freeing returns capacity.
	dev.FreeCallback(list.Head(), &list)
	assert.NotNil(t, dev.AllocCallback(&list))
}

func TestDevice_FreeUnlinks(t *testing.T) {
	dev := NewDevice("eth0", 1, 4)
	var list CallbackList

	cb1 := dev.AllocCallback(&list)
	cb2 := dev.AllocCallback(&list)
	cb3 := dev.AllocCallback(&list)

	// Free the middle record.
	dev.FreeCallback(cb2, &list)
	assert.Equal(t, 2, list.Len())
	assert.Same(t, cb3, list.Head())

	dev.FreeCallback(cb3, &list)
	assert.Same(t, cb1, list.Head())

	dev.FreeCallback(cb1, &list)
	assert.True(t, list.Empty())
}

func TestDevice_FreeCallbacksReapsAll(t *testing.T) {
	dev := NewDevice("eth0", 1, 4)
	var list CallbackList

	for i := 0; i < 4; i++ {
		require.NotNil(t, dev.AllocCallback(&list))
	}

	dev.FreeCallbacks(&list)
	assert.True(t, list.Empty())

	// Full capacity is back.
	for i := 0; i < 4; i++ {
		require.NotNil(t, dev.AllocCallback(&list))
	}
}

func TestCallbackList_Find(t *testing.T) {
	dev := NewDevice("eth0", 1, 4)
	var list CallbackList

	owner1 := &struct{ name string }{"one"}
	owner2 := &struct{ name string }{"two"}

	cb1 := dev.AllocCallback(&list)
	cb1.Priv = owner1
	cb2 := dev.AllocCallback(&list)
	cb2.Priv = owner2

	assert.Same(t, cb1, list.Find(owner1))
	assert.Same(t, cb2, list.Find(owner2))
	assert.Nil(t, list.Find(&struct{ name string }{"three"}))
}

func TestDispatch_FilterAndOrder(t *testing.T) {
	dev := NewDevice("eth0", 1, 4)
	var list CallbackList
	var order []string

	handler := func(name string) Handler {
		return func(_ *Device, _ any, _ any, flags Event) Event {
			order = append(order, name)
			return flags
		}
	}

	cb1 := dev.AllocCallback(&list)
	cb1.Filter = Close
	cb1.Event = handler("close-only")

	cb2 := dev.AllocCallback(&list)
	cb2.Filter = DisconnEvents
	cb2.Event = handler("disconn")

	list.Dispatch(dev, nil, Abort)

	// Only the matching filter ran, and the head (latest alloc) first.
	assert.Equal(t, []string{"disconn"}, order)

	order = nil
	list.Dispatch(dev, nil, Close)
	assert.Equal(t, []string{"disconn", "close-only"}, order)
}

func TestDispatch_NilHandlerSkipped(t *testing.T) {
	dev := NewDevice("eth0", 1, 4)
	var list CallbackList

	cb := dev.AllocCallback(&list)
	cb.Filter = DisconnEvents
	cb.Event = nil

	// Must not panic.
	out := list.Dispatch(dev, nil, Abort)
	assert.Equal(t, Abort, out)
}

func TestDispatch_HandlerMayFreeOwnRecord(t *testing.T) {
	dev := NewDevice("eth0", 1, 4)
	var list CallbackList
	var ran []int

	cb1 := dev.AllocCallback(&list)
	cb1.Filter = DisconnEvents
	cb1.Event = func(_ *Device, _ any, _ any, flags Event) Event {
		ran = append(ran, 1)
		return flags
	}

	cb2 := dev.AllocCallback(&list)
	cb2.Filter = DisconnEvents
	cb2.Event = func(_ *Device, _ any, _ any, flags Event) Event {
		ran = append(ran, 2)
		dev.FreeCallback(cb2, &list)
		return flags
	}

	list.Dispatch(dev, nil, Close)

	// The self-freeing head did not break the walk.
	assert.Equal(t, []int{2, 1}, ran)
	assert.Equal(t, 1, list.Len())
	assert.Same(t, cb1, list.Head())
}

func TestDispatch_FlagsChainThroughHandlers(t *testing.T) {
	dev := NewDevice("eth0", 1, 4)
	var list CallbackList

	cb1 := dev.AllocCallback(&list)
	cb1.Filter = Close
	cb1.Event = func(_ *Device, _ any, _ any, flags Event) Event {
		t.Fatal("cleared bit should not reach later handlers")
		return flags
	}

	// Head runs first and strips the Close bit.
	cb2 := dev.AllocCallback(&list)
	cb2.Filter = Close
	cb2.Event = func(_ *Device, _ any, _ any, flags Event) Event {
		return flags &^ Close
	}

	out := list.Dispatch(dev, nil, Close)
	assert.Equal(t, Event(0), out)
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "NONE", Event(0).String())
	assert.Equal(t, "CONNECTED", Connected.String())
	assert.Equal(t, "CLOSE|ABORT", (Close | Abort).String())
	assert.Equal(t, "CLOSE|ABORT|TIMEDOUT|NETDEV_DOWN", DisconnEvents.String())
}
