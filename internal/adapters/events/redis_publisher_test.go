package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

func setupRedisPublisher(t *testing.T) (*RedisPublisher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	pub, err := NewRedisPublisher("redis://"+mr.Addr(), "auditlog:", 100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })
	return pub, mr
}

func TestRedisPublisherAppendsToTopicStream(t *testing.T) {
	pub, mr := setupRedisPublisher(t)
	event := domain.EventEnvelope{
		EventID:       "evt-1",
		EventType:     domain.EventSystemEventCreated,
		AggregateType: "system_event",
		AggregateID:   "se-1",
		Severity:      domain.SeverityWarning,
		SchemaVersion: domain.CurrentEventSchemaVersion,
	}

	require.NoError(t, pub.Publish(context.Background(), event.Topic(), event))
	require.NoError(t, pub.Ping(context.Background()))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	msgs, err := client.XRange(context.Background(), "auditlog:system-events.warning.created", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "evt-1", msgs[0].Values["event_id"])
	assert.Equal(t, "WARNING", msgs[0].Values["severity"])

	var decoded domain.EventEnvelope
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &decoded))
	assert.Equal(t, "se-1", decoded.AggregateID)
}

func TestRedisPublisherReportsOutage(t *testing.T) {
	pub, mr := setupRedisPublisher(t)
	mr.Close()

	err := pub.Publish(context.Background(), "system-events.error.created", domain.EventEnvelope{EventID: "evt-2"})
	require.Error(t, err)
}

func TestNewRedisPublisherRejectsBadURL(t *testing.T) {
	_, err := NewRedisPublisher("not a url", "", 0)
	require.Error(t, err)
}
