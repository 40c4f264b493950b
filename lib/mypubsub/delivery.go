package mypubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/MarcGrol/invoicebackend/lib/myevents"
)

const maxDeliveryAttempts = 5

// deliver POSTs the envelope to a subscriber endpoint, retrying with
// exponential backoff. Every retry bumps metadata.retryCount so the consumer
// can see it is handling a redelivery.
func deliver(c context.Context, client *http.Client, url string, subscription string, data string) error {
	attempt := 0
	operation := func() error {
		body, err := composePushRequest(data, subscription, attempt)
		if err != nil {
			return backoff.Permanent(err)
		}
		attempt++

		req, err := http.NewRequestWithContext(c, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("subscriber %s responded with status %d", url, resp.StatusCode)
		}

		return nil
	}

	return backoff.Retry(operation, backoff.WithContext(newDeliveryBackOff(), c))
}

func newDeliveryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.WithMaxRetries(b, maxDeliveryAttempts)
}

func composePushRequest(data string, subscription string, retryCount int) ([]byte, error) {
	envelope := myevents.EventEnvelope{}
	err := json.Unmarshal([]byte(data), &envelope)
	if err != nil {
		return nil, fmt.Errorf("error parsing envelope for delivery: %s", err)
	}
	envelope.Metadata.RetryCount = retryCount

	envelopeBytes, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("error serializing envelope for delivery: %s", err)
	}

	return json.Marshal(myevents.PushRequest{
		Message: myevents.PushMessage{
			Data: envelopeBytes,
			ID:   envelope.EventID,
		},
		Subscription: subscription,
	})
}
