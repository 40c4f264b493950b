package myinbox

import (
	"context"
)

// New returns a redis-backed inbox when REDIS_ADDR is set, an in-memory one
// otherwise.
var New func(c context.Context) (Inbox, func(), error)

// Inbox remembers which eventIds a consumer has already processed, so that
// redeliveries on the at-least-once bus can be acknowledged without
// re-executing the handler.
//
//go:generate mockgen -source=api.go -package myinbox -destination inbox_mock.go Inbox
type Inbox interface {
	AlreadyProcessed(c context.Context, consumer string, eventID string) (bool, error)
	MarkProcessed(c context.Context, consumer string, eventID string) error
}
