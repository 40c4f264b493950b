package mystore

import (
	"context"
	"os"
)

type ctxTransactionKey struct{}

type Filter struct {
	Field   string
	Compare string
	Value   any
}

//go:generate mockgen -source=api.go -package mystore -destination store_mock.go Store
type Store[T any] interface {
	RunInTransaction(c context.Context, f func(c context.Context) error) error
	Put(c context.Context, uid string, value T) error
	Get(c context.Context, uid string) (T, bool, error)
	List(c context.Context) ([]T, error)
	Query(c context.Context, filters []Filter, orderByField string) ([]T, error)
	Ping(c context.Context) error
}

// New selects the backend based on the environment: mongo when MONGO_URI is
// set, gcloud datastore when running on gcloud, in-memory otherwise.
func New[T any](c context.Context) (Store[T], func(), error) {
	if os.Getenv("MONGO_URI") != "" {
		return newMongoStore[T](c)
	}

	if os.Getenv("GOOGLE_CLOUD_PROJECT") != "" {
		return newGcloudStore[T](c)
	}

	return NewInMemoryStore[T](c)
}
