package mypublisher

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/MarcGrol/invoicebackend/lib/mycontext"
	"github.com/MarcGrol/invoicebackend/lib/myevents"
	"github.com/MarcGrol/invoicebackend/lib/mytime"
)

type enveloper struct {
	nower  mytime.Nower
	source string
}

func newEnveloper(nower mytime.Nower, source string) enveloper {
	return enveloper{
		nower:  nower,
		source: source,
	}
}

func (e enveloper) do(c context.Context, event myevents.Event) (myevents.EventEnvelope, error) {
	jsonPayload, err := json.Marshal(event)
	if err != nil {
		return myevents.EventEnvelope{}, fmt.Errorf("error marshalling event-payload: %s", err)
	}
	envelope := myevents.EventEnvelope{
		EventType: event.GetEventTypeName(),
		Version:   "1.0",
		Payload:   jsonPayload,
		Metadata: myevents.Metadata{
			Source:        e.source,
			CorrelationID: mycontext.CorrelationID(c),
		},
	}

	// In order to be idempotent, we do NOT use an uuid to identify the event:
	// re-emitting the same business fact yields the same eventId
	envelope.EventID, err = checksum(envelope)
	if err != nil {
		return myevents.EventEnvelope{}, fmt.Errorf("error checksumming event-payload: %s", err)
	}
	// In order to be idempotent, we exclude timestamp from the checksum
	envelope.Timestamp = e.nower.Now().UnixMilli()

	return envelope, nil
}

func checksum(envlp myevents.EventEnvelope) (string, error) {
	asJson, err := json.Marshal(envlp)
	if err != nil {
		return "", err
	}

	sha2 := sha256.New()
	_, err = io.WriteString(sha2, string(asJson))
	if err != nil {
		return "", err
	}
	checkSum := base64.RawURLEncoding.EncodeToString(sha2.Sum(nil))
	return checkSum, nil
}
