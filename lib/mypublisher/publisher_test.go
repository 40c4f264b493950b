package mypublisher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/invoicebackend/lib/myevents"
	"github.com/MarcGrol/invoicebackend/lib/mylog"
	"github.com/MarcGrol/invoicebackend/lib/mypubsub"
	"github.com/MarcGrol/invoicebackend/lib/myqueue"
	"github.com/MarcGrol/invoicebackend/lib/mystore"
	"github.com/MarcGrol/invoicebackend/lib/mytime"
)

type orderCreated struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
}

func (e orderCreated) GetEventTypeName() string {
	return "ORDER_CREATED"
}

func (e orderCreated) GetAggregateName() string {
	return e.OrderID
}

func TestPublishStoresOutboxEntry(t *testing.T) {
	c := context.TODO()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher, outbox, pubsub, queue, nower := setup(t, c, ctrl)
	_ = pubsub

	// given
	nower.EXPECT().Now().Return(mytime.ExampleTime)
	queue.EXPECT().Enqueue(c, gomock.Any()).Return(nil)

	// when
	err := publisher.Publish(c, "ORDER_CREATED", orderCreated{OrderID: "123", CustomerID: "456"})

	// then
	assert.NoError(t, err)
	entries, err := outbox.List(c)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "ORDER_CREATED", entries[0].Topic)
	assert.Equal(t, "123", entries[0].AggregateUID)
	assert.False(t, entries[0].Published)

	envelope := myevents.EventEnvelope{}
	err = json.Unmarshal([]byte(entries[0].EnvelopeJSON), &envelope)
	assert.NoError(t, err)
	assert.Equal(t, "ORDER_CREATED", envelope.EventType)
	assert.Equal(t, entries[0].UID, envelope.EventID)
	assert.Equal(t, "testservice", envelope.Metadata.Source)
}

func TestSameFactYieldsSameEventID(t *testing.T) {
	c := context.TODO()

	e := newEnveloper(mytime.RealNower{}, "testservice")

	first, err := e.do(c, orderCreated{OrderID: "123", CustomerID: "456"})
	assert.NoError(t, err)
	second, err := e.do(c, orderCreated{OrderID: "123", CustomerID: "456"})
	assert.NoError(t, err)
	other, err := e.do(c, orderCreated{OrderID: "124", CustomerID: "456"})
	assert.NoError(t, err)

	assert.Equal(t, first.EventID, second.EventID)
	assert.NotEqual(t, first.EventID, other.EventID)
}

func TestDrainPublishesAndMarks(t *testing.T) {
	c := context.TODO()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher, outbox, pubsub, queue, nower := setup(t, c, ctrl)

	// given
	nower.EXPECT().Now().Return(mytime.ExampleTime)
	queue.EXPECT().Enqueue(c, gomock.Any()).Return(nil)
	err := publisher.Publish(c, "ORDER_CREATED", orderCreated{OrderID: "123", CustomerID: "456"})
	assert.NoError(t, err)

	// when
	pubsub.EXPECT().Publish(gomock.Any(), "ORDER_CREATED", "123", gomock.Any()).Return(nil)
	err = publisher.drain(c)

	// then
	assert.NoError(t, err)
	entries, err := outbox.List(c)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.True(t, entries[0].Published)

	// a second drain finds nothing to publish
	err = publisher.drain(c)
	assert.NoError(t, err)
}

func setup(t *testing.T, c context.Context, ctrl *gomock.Controller) (*transactionalPublisher, mystore.Store[OutboxEntry], *mypubsub.MockPubSub, *myqueue.MockTaskQueuer, *mytime.MockNower) {
	outbox, cleanup, err := mystore.NewInMemoryStore[OutboxEntry](c)
	assert.NoError(t, err)
	t.Cleanup(cleanup)

	pubsub := mypubsub.NewMockPubSub(ctrl)
	queue := myqueue.NewMockTaskQueuer(ctrl)
	nower := mytime.NewMockNower(ctrl)

	publisher := &transactionalPublisher{
		outbox:    outbox,
		queue:     queue,
		enveloper: newEnveloper(nower, "testservice"),
		pubsub:    pubsub,
		logger:    mylog.New("publisher.testservice"),
	}

	return publisher, outbox, pubsub, queue, nower
}
