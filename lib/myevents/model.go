package myevents

import (
	"encoding/json"
	"fmt"
	"io"
)

// EventEnvelope is the canonical wire format shared by every producer and
// consumer. EventID identifies one logical business fact: a re-emission of
// the same fact carries the same id, so consumers can use it for
// deduplication and the transport can use it as partition key fallback.
type EventEnvelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	Version   string          `json:"version"`
	Payload   json.RawMessage `json:"payload" datastore:",noindex"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Metadata  Metadata        `json:"metadata"`
}

type Metadata struct {
	Source        string `json:"source"`
	CorrelationID string `json:"correlationId,omitempty"`
	RetryCount    int    `json:"retryCount,omitempty"`
}

func (e EventEnvelope) String() string {
	return e.EventType + "." + e.EventID
}

type Event interface {
	GetEventTypeName() string
	GetAggregateName() string
}

// PushRequest is the wrapper in which the transport POSTs an envelope to a
// subscribed endpoint, mirroring the pubsub push message format.
type PushRequest struct {
	Message      PushMessage
	Subscription string
}

type PushMessage struct {
	Attributes map[string]string
	Data       []byte
	ID         string `json:"message_id"`
}

func ParseEventEnvelope(r io.Reader) (EventEnvelope, error) {
	msg := PushRequest{}
	err := json.NewDecoder(r).Decode(&msg)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("error parsing push-request:%s", err)
	}
	envlp := EventEnvelope{}
	err = json.Unmarshal(msg.Message.Data, &envlp)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("error parsing envelope:%s", err)
	}
	if envlp.EventID == "" || envlp.EventType == "" {
		return EventEnvelope{}, fmt.Errorf("envelope without eventId or eventType")
	}

	return envlp, nil
}
