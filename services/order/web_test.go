package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/invoicebackend/lib/myevents"
	"github.com/MarcGrol/invoicebackend/lib/myinbox"
	"github.com/MarcGrol/invoicebackend/lib/mypublisher"
	"github.com/MarcGrol/invoicebackend/lib/mypubsub"
	"github.com/MarcGrol/invoicebackend/lib/mystore"
	"github.com/MarcGrol/invoicebackend/lib/mytime"
	"github.com/MarcGrol/invoicebackend/lib/myuuid"
	"github.com/MarcGrol/invoicebackend/services/invoice/invoiceevents"
	"github.com/MarcGrol/invoicebackend/services/order/orderevents"
)

var (
	shippedOrder = Order{
		UID:        "o123",
		Status:     OrderStatusShipped,
		Price:      199.99,
		Quantity:   3,
		ProductID:  "p1",
		CustomerID: "c1",
		SellerID:   "s1",
		CreatedAt:  mytime.ExampleTime,
	}
)

func TestOrderService(t *testing.T) {

	t.Run("Create order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, uuider, publisher := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		uuider.EXPECT().Create().Return("o123")
		publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicOrderCreated,
			orderevents.OrderCreated{OrderID: "o123", CustomerID: "c1", SellerID: "s1"}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/order",
			strings.NewReader(`{"price":199.99,"quantity":3,"productId":"p1","customerId":"c1","sellerId":"s1"}`))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/json")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 201, response.Code)
		order, exists, _ := storer.Get(ctx, "o123")
		assert.True(t, exists)
		assert.Equal(t, OrderStatusCreated, order.Status)
		assert.Equal(t, 199.99, order.Price)
		assert.Empty(t, order.InvoiceID)
	})

	t.Run("Create order with invalid input", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/order",
			strings.NewReader(`{"price":-50,"quantity":0,"productId":""}`))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/json")
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then: nothing persisted, nothing published
		assert.Equal(t, 400, response.Code)
		orders, _ := storer.List(ctx)
		assert.Empty(t, orders)
	})

	t.Run("Get order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, _, _ := setup(t, ctrl)

		// given
		_ = storer.Put(ctx, shippedOrder.UID, shippedOrder)

		// when
		request, err := http.NewRequest(http.MethodGet, "/api/order/o123", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		got := Order{}
		err = json.Unmarshal(response.Body.Bytes(), &got)
		assert.NoError(t, err)
		assert.Equal(t, "o123", got.UID)
		assert.Equal(t, OrderStatusShipped, got.Status)
	})

	t.Run("Get order not exists", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodGet, "/api/order/unknown", nil)
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
	})

	t.Run("Update status to shipped without invoice publishes nothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, _ := setup(t, ctrl)

		// given
		created := shippedOrder
		created.Status = OrderStatusCreated
		_ = storer.Put(ctx, created.UID, created)
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		request, err := http.NewRequest(http.MethodPut, "/api/order/o123",
			strings.NewReader(`{"status":"SHIPPED"}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		order, _, _ := storer.Get(ctx, "o123")
		assert.Equal(t, OrderStatusShipped, order.Status)
		assert.False(t, order.InvoiceSendEmitted)
	})

	t.Run("Invoice uploaded on shipped order publishes send-request", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, _, publisher := setup(t, ctrl)

		// given
		_ = storer.Put(ctx, shippedOrder.UID, shippedOrder)
		publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicInvoiceSend,
			orderevents.InvoiceSendRequested{InvoiceID: "inv1", OrderID: "o123"}).Return(nil)

		// when
		response := deliverInvoiceUploaded(t, router, "evt-1")

		// then
		assert.Equal(t, 200, response.Code)
		order, _, _ := storer.Get(ctx, "o123")
		assert.Equal(t, "inv1", order.InvoiceID)
		assert.True(t, order.InvoiceSendEmitted)
	})

	t.Run("Invoice uploaded before shipped attaches without publish", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, nower, _, publisher := setup(t, ctrl)

		// given
		created := shippedOrder
		created.Status = OrderStatusCreated
		_ = storer.Put(ctx, created.UID, created)

		// when: upload arrives first
		response := deliverInvoiceUploaded(t, router, "evt-1")

		// then: invoice attached, no event yet
		assert.Equal(t, 200, response.Code)
		order, _, _ := storer.Get(ctx, "o123")
		assert.Equal(t, "inv1", order.InvoiceID)
		assert.False(t, order.InvoiceSendEmitted)

		// when: the shipped update follows
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicInvoiceSend,
			orderevents.InvoiceSendRequested{InvoiceID: "inv1", OrderID: "o123"}).Return(nil)

		request, err := http.NewRequest(http.MethodPut, "/api/order/o123",
			strings.NewReader(`{"status":"SHIPPED"}`))
		assert.NoError(t, err)
		response = httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then: exactly one send-request, claimed by the update
		assert.Equal(t, 200, response.Code)
		order, _, _ = storer.Get(ctx, "o123")
		assert.True(t, order.InvoiceSendEmitted)
	})

	t.Run("Redelivered invoice-uploaded event is ignored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, storer, _, _, publisher := setup(t, ctrl)

		// given
		_ = storer.Put(ctx, shippedOrder.UID, shippedOrder)
		publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicInvoiceSend, gomock.Any()).Return(nil).Times(1)

		// when: the same envelope arrives twice
		response := deliverInvoiceUploaded(t, router, "evt-1")
		assert.Equal(t, 200, response.Code)
		response = deliverInvoiceUploaded(t, router, "evt-1")

		// then: second delivery acknowledged without dispatch
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), "Duplicate event ignored")
		order, _, _ := storer.Get(ctx, "o123")
		assert.True(t, order.InvoiceSendEmitted)
	})

	t.Run("Invoice uploaded for unknown order fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _ := setup(t, ctrl)

		// when
		response := deliverInvoiceUploaded(t, router, "evt-1")

		// then
		assert.Equal(t, 404, response.Code)
	})
}

func deliverInvoiceUploaded(t *testing.T, router *mux.Router, eventID string) *httptest.ResponseRecorder {
	request, err := http.NewRequest(http.MethodPost, "/api/order/event",
		strings.NewReader(createPushRequest(t, eventID, invoiceevents.InvoiceUploaded{
			InvoiceID: "inv1",
			OrderID:   "o123",
		})))
	assert.NoError(t, err)
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)
	return response
}

func createPushRequest(t *testing.T, eventID string, event invoiceevents.InvoiceUploaded) string {
	eventBytes, err := json.Marshal(event)
	assert.NoError(t, err)

	envelope := myevents.EventEnvelope{
		EventID:   eventID,
		EventType: event.GetEventTypeName(),
		Version:   "1.0",
		Payload:   eventBytes,
		Metadata: myevents.Metadata{
			Source: "invoice-service",
		},
	}
	envelopeBytes, err := json.Marshal(envelope)
	assert.NoError(t, err)

	reqBytes, err := json.Marshal(myevents.PushRequest{
		Message: myevents.PushMessage{
			Data: envelopeBytes,
			ID:   eventID,
		},
		Subscription: consumerGroup,
	})
	assert.NoError(t, err)

	return string(reqBytes)
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[Order], *mytime.MockNower, *myuuid.MockUUIDer, *mypublisher.MockPublisher) {
	c := context.TODO()
	storer, cleanup, err := mystore.NewInMemoryStore[Order](c)
	assert.NoError(t, err)
	t.Cleanup(cleanup)

	nower := mytime.NewMockNower(ctrl)
	uuider := myuuid.NewMockUUIDer(ctrl)
	subscriber := mypubsub.NewMockPubSub(ctrl)
	publisher := mypublisher.NewMockPublisher(ctrl)
	inbox, inboxCleanup, err := myinbox.NewInMemoryInbox(c)
	assert.NoError(t, err)
	t.Cleanup(inboxCleanup)

	sut := NewService(storer, nower, uuider, subscriber, publisher, inbox)
	router := mux.NewRouter()

	// These are called by the following call to RegisterEndpoints()
	publisher.EXPECT().CreateTopic(c, orderevents.TopicOrderCreated).Return(nil)
	publisher.EXPECT().CreateTopic(c, orderevents.TopicInvoiceSend).Return(nil)
	subscriber.EXPECT().Subscribe(c, invoiceevents.TopicInvoiceUploaded, consumerGroup, "http://localhost:8080/api/order/event").Return(nil)

	err = sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, storer, nower, uuider, publisher
}
