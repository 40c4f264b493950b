package mystore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

type InMemoryStore[T any] struct {
	sync.Mutex
	Items map[string]T
}

func NewInMemoryStore[T any](c context.Context) (*InMemoryStore[T], func(), error) {
	return &InMemoryStore[T]{
		Items: make(map[string]T),
	}, func() {}, nil
}

func (s *InMemoryStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	// Start transaction
	s.Lock()

	// the marker carries the store instance, so operations on another store
	// within this transaction still take their own lock
	ctx := context.WithValue(c, ctxTransactionKey{}, s)

	// Within this block everything is serialized
	err := f(ctx)
	if err != nil {
		// Rollback
		s.Unlock()

		return err
	}

	// Commit
	s.Unlock()

	return nil
}

func (s *InMemoryStore[T]) inTransaction(c context.Context) bool {
	return c.Value(ctxTransactionKey{}) == any(s)
}

func (s *InMemoryStore[T]) Put(c context.Context, uid string, value T) error {
	nonTransactional := !s.inTransaction(c)

	if nonTransactional {
		s.Lock()
	}

	s.Items[uid] = value

	if nonTransactional {
		s.Unlock()
	}

	return nil
}

func (s *InMemoryStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	nonTransactional := !s.inTransaction(c)

	if nonTransactional {
		s.Lock()
	}
	result, exists := s.Items[uid]

	if nonTransactional {
		s.Unlock()
	}

	return result, exists, nil
}

func (s *InMemoryStore[T]) List(c context.Context) ([]T, error) {
	nonTransactional := !s.inTransaction(c)

	if nonTransactional {
		s.Lock()
	}

	result := make([]T, 0, len(s.Items))
	for _, v := range s.Items {
		result = append(result, v)
	}

	if nonTransactional {
		s.Unlock()
	}

	return result, nil
}

// Query supports equality filters only, which is all the other backends are
// asked to do as well.
func (s *InMemoryStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	all, err := s.List(c)
	if err != nil {
		return nil, err
	}

	result := make([]T, 0, len(all))
	for _, item := range all {
		matches := true
		for _, f := range filters {
			if f.Compare != "=" {
				return nil, fmt.Errorf("unsupported compare operator %s", f.Compare)
			}
			if !reflect.DeepEqual(fieldByName(item, f.Field), f.Value) {
				matches = false
				break
			}
		}
		if matches {
			result = append(result, item)
		}
	}

	if orderByField != "" {
		sort.SliceStable(result, func(i, j int) bool {
			return lessThan(fieldByName(result[i], orderByField), fieldByName(result[j], orderByField))
		})
	}

	return result, nil
}

func (s *InMemoryStore[T]) Ping(c context.Context) error {
	return nil
}

func fieldByName[T any](item T, name string) any {
	v := reflect.ValueOf(item).FieldByName(name)
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

func lessThan(a, b any) bool {
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if aok && bok {
		return at.Before(bt)
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}
