package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/MarcGrol/invoicebackend/lib/myerrors"
	"github.com/MarcGrol/invoicebackend/lib/myhttp"
	"github.com/MarcGrol/invoicebackend/lib/mylog"
	"github.com/MarcGrol/invoicebackend/services/invoice/invoiceevents"
	"github.com/MarcGrol/invoicebackend/services/order/orderevents"
)

func (s *service) Subscribe(c context.Context) error {
	for _, topic := range []string{invoiceevents.TopicInvoiceUploaded, invoiceevents.TopicInvoiceSent} {
		err := s.publisher.CreateTopic(c, topic)
		if err != nil {
			return fmt.Errorf("error creating topic %s: %s", topic, err)
		}
	}

	err := s.pubsub.Subscribe(c, orderevents.TopicInvoiceSend, consumerGroup,
		myhttp.GuessHostnameWithScheme()+"/api/invoice/event")
	if err != nil {
		return fmt.Errorf("error subscribing to topic %s: %s", orderevents.TopicInvoiceSend, err)
	}

	return nil
}

func (s *service) OnInvoiceSendRequested(c context.Context, topic string, event orderevents.InvoiceSendRequested) error {
	s.logger.Log(c, event.OrderID, mylog.SeverityInfo, "Webhook: send requested for invoice %s of order %s", event.InvoiceID, event.OrderID)

	now := s.nower.Now()

	return s.invoiceStore.RunInTransaction(c, func(c context.Context) error {
		invoice, found, err := s.invoiceStore.Get(c, event.InvoiceID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("invoice with uid %s not found", event.InvoiceID))
		}

		// sentAt transitions unset to set at most once, redeliveries are
		// acknowledged without sending again
		if invoice.SentAt != nil {
			return nil
		}

		invoice.SentAt = &now

		err = s.invoiceStore.Put(c, invoice.UID, invoice)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		err = s.publisher.Publish(c, invoiceevents.TopicInvoiceSent, invoiceevents.InvoiceSent{
			InvoiceID: invoice.UID,
			OrderID:   invoice.OrderID,
			SentAt:    now.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
}
