package myinbox

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryInbox(t *testing.T) {
	c := context.TODO()

	inbox, cleanup, err := NewInMemoryInbox(c)
	assert.NoError(t, err)
	defer cleanup()

	testInbox(t, c, inbox)
}

func TestRedisInbox(t *testing.T) {
	c := context.TODO()

	server := miniredis.RunT(t)
	inbox := &redisInbox{
		client: redis.NewClient(&redis.Options{Addr: server.Addr()}),
	}
	defer inbox.client.Close()

	testInbox(t, c, inbox)
}

func testInbox(t *testing.T, c context.Context, inbox Inbox) {
	// unseen event
	processed, err := inbox.AlreadyProcessed(c, "order-service", "abc123")
	assert.NoError(t, err)
	assert.False(t, processed)

	// mark and check
	err = inbox.MarkProcessed(c, "order-service", "abc123")
	assert.NoError(t, err)

	processed, err = inbox.AlreadyProcessed(c, "order-service", "abc123")
	assert.NoError(t, err)
	assert.True(t, processed)

	// same event for another consumer is still unseen
	processed, err = inbox.AlreadyProcessed(c, "invoice-service", "abc123")
	assert.NoError(t, err)
	assert.False(t, processed)

	// marking twice is fine
	err = inbox.MarkProcessed(c, "order-service", "abc123")
	assert.NoError(t, err)
}
