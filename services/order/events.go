package order

import (
	"context"
	"fmt"

	"github.com/MarcGrol/invoicebackend/lib/myerrors"
	"github.com/MarcGrol/invoicebackend/lib/myhttp"
	"github.com/MarcGrol/invoicebackend/lib/mylog"
	"github.com/MarcGrol/invoicebackend/services/invoice/invoiceevents"
	"github.com/MarcGrol/invoicebackend/services/order/orderevents"
)

func (s *service) Subscribe(c context.Context) error {
	for _, topic := range []string{orderevents.TopicOrderCreated, orderevents.TopicInvoiceSend} {
		err := s.publisher.CreateTopic(c, topic)
		if err != nil {
			return fmt.Errorf("error creating topic %s: %s", topic, err)
		}
	}

	err := s.pubsub.Subscribe(c, invoiceevents.TopicInvoiceUploaded, consumerGroup,
		myhttp.GuessHostnameWithScheme()+"/api/order/event")
	if err != nil {
		return fmt.Errorf("error subscribing to topic %s: %s", invoiceevents.TopicInvoiceUploaded, err)
	}

	return nil
}

func (s *service) OnInvoiceUploaded(c context.Context, topic string, event invoiceevents.InvoiceUploaded) error {
	s.logger.Log(c, event.OrderID, mylog.SeverityInfo, "Webhook: invoice %s uploaded for order %s", event.InvoiceID, event.OrderID)

	return s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent
		order, found, err := s.orderStore.Get(c, event.OrderID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("order with uid %s not found", event.OrderID))
		}

		// invoiceId is set at most once, the first upload wins
		if order.InvoiceID == "" {
			order.InvoiceID = event.InvoiceID
		} else if order.InvoiceID != event.InvoiceID {
			s.logger.Log(c, event.OrderID, mylog.SeverityWarn,
				"Order %s already has invoice %s, ignoring invoice %s", event.OrderID, order.InvoiceID, event.InvoiceID)
			return nil
		}

		emitInvoiceSend := order.readyForInvoiceSend()

		err = s.orderStore.Put(c, event.OrderID, order)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		if emitInvoiceSend {
			err = s.publisher.Publish(c, orderevents.TopicInvoiceSend, orderevents.InvoiceSendRequested{
				InvoiceID: order.InvoiceID,
				OrderID:   order.UID,
			})
			if err != nil {
				return myerrors.NewInternalError(err)
			}
		}

		return nil
	})
}
