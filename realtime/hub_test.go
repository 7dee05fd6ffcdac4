package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partyboard/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)
	assert.Equal(t, 1, h.Len())

	ev := core.NewSubmissionEvent("bob", core.Created(10))
	h.Broadcast(context.Background(), ev)

	received := <-ch
	assert.Equal(t, core.Pseudo("bob"), received.Pseudo)
	assert.Equal(t, core.EventScoreCreated, received.Type)

	h.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok, "channel closed after unsubscribe")
	assert.Equal(t, 0, h.Len())
}

func TestHubTypeFilter(t *testing.T) {
	h := NewHub()
	_, leaders := h.Subscribe(4, core.EventNewLeader)

	h.Broadcast(context.Background(), core.NewSubmissionEvent("a", core.Created(5)))
	h.Broadcast(context.Background(), core.NewLeader("a", 5))

	require.Len(t, leaders, 1)
	assert.Equal(t, core.EventNewLeader, (<-leaders).Type)
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(1)
	h.Broadcast(context.Background(), core.NewLeader("a", 1))
	h.Broadcast(context.Background(), core.NewLeader("b", 2))

	assert.Len(t, ch, 1)
	assert.Equal(t, int64(1), h.Dropped())
}

func TestMarshalJSON(t *testing.T) {
	ev := core.NewSubmissionEvent("alice", core.Updated(150, 100))
	var out map[string]any
	require.NoError(t, json.Unmarshal(MarshalJSON(ev), &out))
	assert.Equal(t, "score_improved", out["type"])
	assert.Equal(t, "alice", out["pseudo"])
	assert.Equal(t, float64(100), out["previous_score"])
}
