package invoiceevents

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
	TopicInvoiceUploaded = "INVOICE_UPLOADED"
	TopicInvoiceSent     = "INVOICE_SENT"
)

type InvoiceEventService interface {
	Subscribe(c context.Context) error
	OnInvoiceUploaded(c context.Context, topic string, event InvoiceUploaded) error
}

func DispatchEvent(c context.Context, reader io.Reader, service InvoiceEventService) error {
	envelope, err := myevents.ParseEventEnvelope(reader)
	if err != nil {
		return myerrors.NewInvalidInputError(err)
	}

	return DispatchEnvelope(c, envelope, service)
}

func DispatchEnvelope(c context.Context, envelope myevents.EventEnvelope, service InvoiceEventService) error {
	switch envelope.EventType {
	case TopicInvoiceUploaded:
		{
			event := InvoiceUploaded{}
			err := json.Unmarshal(envelope.Payload, &event)
			if err != nil {
				return myerrors.NewInvalidInputError(err)
			}
			return service.OnInvoiceUploaded(c, envelope.EventType, event)
		}
	default:
		return myerrors.NewNotImplementedError(errors.New(envelope.EventType))
	}
}

// InvoiceUploaded is emitted when a seller has uploaded the invoice document
// for an order.
type InvoiceUploaded struct {
	InvoiceID string `json:"invoiceId"`
	OrderID   string `json:"orderId"`
}

func (e InvoiceUploaded) GetEventTypeName() string {
	return TopicInvoiceUploaded
}

func (e InvoiceUploaded) GetAggregateName() string {
	return e.OrderID
}

// InvoiceSent is emitted when the invoice has gone out to the customer. It
// currently has no consumers: it is published for future bookkeeping flows.
type InvoiceSent struct {
	InvoiceID string `json:"invoiceId"`
	OrderID   string `json:"orderId"`
	SentAt    string `json:"sentAt"`
}

func (e InvoiceSent) GetEventTypeName() string {
	return TopicInvoiceSent
}

func (e InvoiceSent) GetAggregateName() string {
	return e.OrderID
}
