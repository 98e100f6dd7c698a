package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"microcredit/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "microcredit:events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewRedisPublisher(rdb, "microcredit:events")
	sent := []domain.EventEnvelope{
		{ID: "a", Name: "LoanAdded", Payload: json.RawMessage(`{"loanId":0}`), EmittedAt: time.Unix(1, 0).UTC()},
		{ID: "b", Name: "LoanClaimed", Payload: json.RawMessage(`{"loanId":0}`), EmittedAt: time.Unix(2, 0).UTC()},
	}
	require.NoError(t, publisher.Publish(ctx, sent))

	ch := sub.Channel()
	for _, want := range sent {
		select {
		case msg := <-ch:
			var got domain.EventEnvelope
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
			assert.Equal(t, want.ID, got.ID)
			assert.Equal(t, want.Name, got.Name)
			assert.JSONEq(t, string(want.Payload), string(got.Payload))
		case <-time.After(2 * time.Second):
			t.Fatalf("event %s not received", want.Name)
		}
	}
}

func TestRedisPublisher_ConnectionFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	publisher := NewRedisPublisher(rdb, "microcredit:events")
	err := publisher.Publish(context.Background(), []domain.EventEnvelope{{ID: "a", Name: "TokenAdded"}})
	assert.Error(t, err)
}
