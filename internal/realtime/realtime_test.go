package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marquise34567/editor-backend-sub000/internal/model"
)

func TestRedisPublisherDeliversJobSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := NewRedisPublisherWithClient(client, "job-events")

	ctx := context.Background()
	sub := client.Subscribe(ctx, "job-events:u1")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub.Publish(ctx, "u1", &model.Job{ID: "j1", Status: model.StatusRendering, Progress: 92})

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)

	var payload struct {
		Job *model.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
	assert.Equal(t, "j1", payload.Job.ID)
	assert.Equal(t, model.StatusRendering, payload.Job.Status)
	assert.Equal(t, 92, payload.Job.Progress)
}

func TestRedisPublisherSurvivesDeadBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	pub := NewRedisPublisherWithClient(client, "")
	mr.Close()

	// Best-effort: a down broker must not panic or block the pipeline.
	pub.Publish(context.Background(), "u1", &model.Job{ID: "j1"})
}

func TestMemoryBusFanOutAndDrop(t *testing.T) {
	bus := NewMemoryBus()
	fast, cancelFast := bus.Subscribe(4)
	defer cancelFast()
	slow, cancelSlow := bus.Subscribe(1)
	defer cancelSlow()

	for i := 0; i < 3; i++ {
		bus.Publish(context.Background(), "u1", &model.Job{ID: "j1", Progress: i})
	}

	assert.Len(t, fast, 3)
	// The slow subscriber's buffer holds one event; the rest dropped.
	assert.Len(t, slow, 1)

	evt := <-fast
	assert.Equal(t, "u1", evt.UserID)
	assert.Equal(t, "j1", evt.Job.ID)
}

func TestMemoryBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewMemoryBus()
	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel() // idempotent
	_, open := <-ch
	assert.False(t, open)
	bus.Publish(context.Background(), "u1", &model.Job{ID: "j1"})
}
