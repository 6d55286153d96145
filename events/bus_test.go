package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := bus.Subscribe(ctx, TOPIC_MUTATION_SETTLED)
	require.Nil(t, err)

	require.Nil(t, bus.Publish(TOPIC_MUTATION_SETTLED, MutationSettled{Id: "m1", Kind: "save", Status: "committed"}))

	select {
	case msg := <-messages:
		var ev MutationSettled
		require.Nil(t, Decode(msg, &ev))
		assert.Equal(t, MutationSettled{Id: "m1", Kind: "save", Status: "committed"}, ev)
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
}

func TestNilBus(t *testing.T) {
	var bus *Bus
	assert.Nil(t, bus.Publish(TOPIC_SCOPE_ERROR, ScopeError{}))
	_, err := bus.Subscribe(context.Background(), TOPIC_SCOPE_ERROR)
	assert.Error(t, err)
	assert.Nil(t, bus.Close())
}
