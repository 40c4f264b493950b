package mypubsub

import (
	"context"
)

// PubSub abstracts a durable partitioned log. Guarantees are deliberately
// weak: delivery is at-least-once and ordered per partition-key only, so
// every subscriber must be idempotent. A subscription delivers messages by
// POSTing a myevents.PushRequest to the registered URL; a 2xx response acks
// the message, anything else triggers redelivery with bounded exponential
// backoff after which the message is parked on the dead-letter topic
// "<topic>.deadletter".
//
// Construction establishes the producer session and fails fast when the
// broker is unreachable. Disconnect drains in-flight work, releases both
// sessions exactly once and is safe to call when never connected.
var New func(c context.Context) (PubSub, func(), error)

//go:generate mockgen -source=api.go -package mypubsub -destination pubsub_mock.go PubSub
type PubSub interface {
	CreateTopic(c context.Context, topic string) error
	Subscribe(c context.Context, topic string, group string, urlToPostTo string) error
	Publish(c context.Context, topic string, partitionKey string, data string) error
	Disconnect(c context.Context) error
}
