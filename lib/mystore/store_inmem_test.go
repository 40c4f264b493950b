package mystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type Person struct {
	UID      string
	Name     string
	Age      int
	Verified bool
	JoinedAt time.Time
}

var (
	person = Person{UID: "123", Name: "Marc", Age: 42, Verified: true, JoinedAt: time.Date(2023, 2, 27, 0, 0, 0, 0, time.UTC)}
	other  = Person{UID: "456", Name: "Eva", Age: 40, Verified: false, JoinedAt: time.Date(2023, 2, 26, 0, 0, 0, 0, time.UTC)}
)

func TestStore(t *testing.T) {
	c := context.TODO()
	ps, cleanup, err := NewInMemoryStore[Person](c)
	assert.NoError(t, err)
	defer cleanup()

	t.Run("Get not found", func(t *testing.T) {
		_, found, err := ps.Get(c, person.UID)
		assert.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Put", func(t *testing.T) {
		err = ps.Put(c, person.UID, person)
		assert.NoError(t, err)
	})

	t.Run("Get found", func(t *testing.T) {
		p, found, err := ps.Get(c, person.UID)
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, person, p)
	})

	t.Run("List", func(t *testing.T) {
		all, err := ps.List(c)
		assert.NoError(t, err)
		assert.Equal(t, []Person{person}, all)
	})

	t.Run("Transactional put is visible afterwards", func(t *testing.T) {
		err := ps.RunInTransaction(c, func(c context.Context) error {
			return ps.Put(c, other.UID, other)
		})
		assert.NoError(t, err)

		p, found, err := ps.Get(c, other.UID)
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, other, p)
	})

	t.Run("Query with equality filter", func(t *testing.T) {
		got, err := ps.Query(c, []Filter{{Field: "Verified", Compare: "=", Value: false}}, "JoinedAt")
		assert.NoError(t, err)
		assert.Equal(t, []Person{other}, got)
	})

	t.Run("Query orders by field", func(t *testing.T) {
		got, err := ps.Query(c, nil, "JoinedAt")
		assert.NoError(t, err)
		assert.Equal(t, []Person{other, person}, got)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, ps.Ping(c))
	})
}
