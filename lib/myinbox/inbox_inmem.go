package myinbox

import (
	"context"
	"os"
	"sync"
)

func init() {
	if os.Getenv("REDIS_ADDR") == "" {
		New = NewInMemoryInbox
	}
}

type inMemoryInbox struct {
	mutex     sync.Mutex
	processed map[string]bool
}

func NewInMemoryInbox(c context.Context) (Inbox, func(), error) {
	return &inMemoryInbox{
		processed: map[string]bool{},
	}, func() {}, nil
}

func (i *inMemoryInbox) AlreadyProcessed(c context.Context, consumer string, eventID string) (bool, error) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	return i.processed[key(consumer, eventID)], nil
}

func (i *inMemoryInbox) MarkProcessed(c context.Context, consumer string, eventID string) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	i.processed[key(consumer, eventID)] = true

	return nil
}

func key(consumer string, eventID string) string {
	return "inbox:" + consumer + ":" + eventID
}
