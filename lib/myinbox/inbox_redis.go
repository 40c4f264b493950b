package myinbox

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// retention window: redeliveries arrive within minutes, a week is plenty
const processedTTL = 7 * 24 * time.Hour

func init() {
	if os.Getenv("REDIS_ADDR") != "" {
		New = newRedisInbox
	}
}

type redisInbox struct {
	client *redis.Client
}

func newRedisInbox(c context.Context) (Inbox, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	err := client.Ping(c).Err()
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to redis: %s", err)
	}

	return &redisInbox{
			client: client,
		}, func() {
			_ = client.Close()
		}, nil
}

func (i *redisInbox) AlreadyProcessed(c context.Context, consumer string, eventID string) (bool, error) {
	count, err := i.client.Exists(c, key(consumer, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("error checking inbox for event %s: %s", eventID, err)
	}

	return count > 0, nil
}

func (i *redisInbox) MarkProcessed(c context.Context, consumer string, eventID string) error {
	err := i.client.SetNX(c, key(consumer, eventID), 1, processedTTL).Err()
	if err != nil {
		return fmt.Errorf("error marking event %s as processed: %s", eventID, err)
	}

	return nil
}
