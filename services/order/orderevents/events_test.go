package orderevents

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MarcGrol/invoicebackend/lib/myerrors"
	"github.com/MarcGrol/invoicebackend/lib/myevents"
)

type recordingService struct {
	received []InvoiceSendRequested
}

func (s *recordingService) Subscribe(c context.Context) error {
	return nil
}

func (s *recordingService) OnInvoiceSendRequested(c context.Context, topic string, event InvoiceSendRequested) error {
	s.received = append(s.received, event)
	return nil
}

func TestDispatchInvoiceSend(t *testing.T) {
	service := &recordingService{}

	err := DispatchEvent(context.TODO(), strings.NewReader(composePushRequest(t, TopicInvoiceSend, `{"invoiceId":"inv1","orderId":"o123"}`)), service)

	assert.NoError(t, err)
	assert.Equal(t, []InvoiceSendRequested{{InvoiceID: "inv1", OrderID: "o123"}}, service.received)
}

func TestDispatchUnknownEventTypeIsRejected(t *testing.T) {
	service := &recordingService{}

	err := DispatchEvent(context.TODO(), strings.NewReader(composePushRequest(t, "ORDER_DELETED", `{}`)), service)

	assert.Error(t, err)
	assert.Equal(t, 501, myerrors.GetHTTPStatus(err))
	assert.Empty(t, service.received)
}

func TestDispatchGarbageIsRejected(t *testing.T) {
	service := &recordingService{}

	err := DispatchEvent(context.TODO(), strings.NewReader("no json at all"), service)

	assert.Error(t, err)
	assert.Equal(t, 400, myerrors.GetHTTPStatus(err))
}

func composePushRequest(t *testing.T, eventType string, payload string) string {
	envelope := myevents.EventEnvelope{
		EventID:   "evt-1",
		EventType: eventType,
		Version:   "1.0",
		Payload:   json.RawMessage(payload),
	}
	envelopeBytes, err := json.Marshal(envelope)
	assert.NoError(t, err)

	reqBytes, err := json.Marshal(myevents.PushRequest{
		Message: myevents.PushMessage{
			Data: envelopeBytes,
			ID:   envelope.EventID,
		},
		Subscription: "invoice-service",
	})
	assert.NoError(t, err)

	return string(reqBytes)
}
