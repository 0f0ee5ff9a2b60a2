package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelEvent(t *testing.T) {
	event := NewChannelEvent[string](false)
	require.NotNil(t, event)
	assert.Equal(t, 0, event.ListenerCount())
	assert.False(t, event.sendLastEventOnListen)
}

func TestChannelEvent_Listen_Notify_Basic(t *testing.T) {
	event := NewChannelEvent[string](false)

	ch := make(chan string, 10)
	unregister := event.Listen(ch)
	assert.Equal(t, 1, event.ListenerCount())

	event.Notify("test1")
	event.Notify("test2")

	require.Len(t, ch, 2)
	assert.Equal(t, "test1", <-ch)
	assert.Equal(t, "test2", <-ch)

	unregister()
	assert.Equal(t, 0, event.ListenerCount())

	event.Notify("test3")
	assert.Len(t, ch, 0)
}

func TestChannelEvent_FullChannelIsSkipped(t *testing.T) {
	event := NewChannelEvent[int](false)

	full := make(chan int, 1)
	roomy := make(chan int, 4)
	event.Listen(full)
	event.Listen(roomy)

	event.Notify(1)
	event.Notify(2)

	assert.Equal(t, 1, <-full)
	assert.Len(t, full, 0)
	assert.Len(t, roomy, 2)
}

func TestChannelEvent_SendLastEventOnListen(t *testing.T) {
	event := NewChannelEvent[string](true)
	event.Notify("snapshot")

	ch := make(chan string, 1)
	unregister := event.Listen(ch)
	defer unregister()

	require.Len(t, ch, 1)
	assert.Equal(t, "snapshot", <-ch)
}

func TestChannelEvent_Listen_NilChannel(t *testing.T) {
	event := NewChannelEvent[string](false)
	assert.Panics(t, func() {
		event.Listen(nil)
	})
}

func TestChannelEvent_MultipleUnregisterCalls(t *testing.T) {
	event := NewChannelEvent[string](false)

	a := event.Listen(make(chan string, 1))
	event.Listen(make(chan string, 1))

	a()
	a()
	assert.Equal(t, 1, event.ListenerCount())
}
