package orderevents

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/MarcGrol/invoicebackend/lib/myerrors"
	"github.com/MarcGrol/invoicebackend/lib/myevents"
)

// Each event type has its own topic, so the topic name doubles as the
// event type name
const (
	TopicOrderCreated = "ORDER_CREATED"
	TopicInvoiceSend  = "INVOICE_SEND"
)

type OrderEventService interface {
	Subscribe(c context.Context) error
	OnInvoiceSendRequested(c context.Context, topic string, event InvoiceSendRequested) error
}

func DispatchEvent(c context.Context, reader io.Reader, service OrderEventService) error {
	envelope, err := myevents.ParseEventEnvelope(reader)
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}

	return DispatchEnvelope(c, envelope, service)
}

func DispatchEnvelope(c context.Context, envelope myevents.EventEnvelope, service OrderEventService) error {
	switch envelope.EventType {
	case TopicInvoiceSend:
		{
			event := InvoiceSendRequested{}
			err := json.Unmarshal(envelope.Payload, &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnInvoiceSendRequested(c, envelope.EventType, event)
		}
	default:
		return myerrors.NewNotImplementedError(errors.New(envelope.EventType))
	}
}

// OrderCreated is emitted when a new order has been accepted. It currently
// has no consumers: it is published for future fulfilment flows.
type OrderCreated struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	SellerID   string `json:"sellerId"`
}

func (e OrderCreated) GetEventTypeName() string {
	return TopicOrderCreated
}

func (e OrderCreated) GetAggregateName() string {
	return e.OrderID
}

// InvoiceSendRequested signals that the order is shipped and its invoice is
// available, so the invoice can go out to the customer.
type InvoiceSendRequested struct {
	InvoiceID string `json:"invoiceId"`
	OrderID   string `json:"orderId"`
}

func (e InvoiceSendRequested) GetEventTypeName() string {
	return TopicInvoiceSend
}

func (e InvoiceSendRequested) GetAggregateName() string {
	return e.OrderID
}
