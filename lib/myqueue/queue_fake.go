package myqueue

import (
	"context"
	"os"
)

// Outside gcloud there is no task queue: the periodic outbox drainer picks
// the enqueued events up instead.
type fakeTaskQueue struct {
}

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		New = newFakeQueue
	}
}

func newFakeQueue(c context.Context) (TaskQueuer, func(), error) {
	return &fakeTaskQueue{}, func() {
	}, nil
}

func (q *fakeTaskQueue) Enqueue(c context.Context, task Task) error {
	return nil
}
