package myqueue

import (
	"context"
)

// Task triggers a webhook on our own service, used to nudge the outbox
// drainer right after an event has been enqueued.
type Task struct {
	UID            string
	WebhookURLPath string
	Payload        []byte
}

var New func(c context.Context) (TaskQueuer, func(), error)

//go:generate mockgen -source=api.go -package myqueue -destination queuer_mock.go TaskQueuer
type TaskQueuer interface {
	Enqueue(c context.Context, task Task) error
}
