package mypublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/invoicebackend/lib/mycontext"
	"github.com/MarcGrol/invoicebackend/lib/myevents"
	"github.com/MarcGrol/invoicebackend/lib/myhttp"
	"github.com/MarcGrol/invoicebackend/lib/mylog"
	"github.com/MarcGrol/invoicebackend/lib/mypubsub"
	"github.com/MarcGrol/invoicebackend/lib/myqueue"
	"github.com/MarcGrol/invoicebackend/lib/mystore"
	"github.com/MarcGrol/invoicebackend/lib/mytime"
)

const drainInterval = 500 * time.Millisecond

// OutboxEntry is an event that was stored in the same transaction as the
// state change that caused it, awaiting publication on the bus.
type OutboxEntry struct {
	UID          string
	Topic        string
	AggregateUID string
	CreatedAt    time.Time
	Published    bool
	EnvelopeJSON string `datastore:",noindex"`
}

type transactionalPublisher struct {
	outbox    mystore.Store[OutboxEntry]
	queue     myqueue.TaskQueuer
	enveloper enveloper
	pubsub    mypubsub.PubSub
	logger    mylog.Logger
}

// New returns a publisher that implements the transactional-outbox pattern:
// Publish stores the envelope in the same datastore transaction as the
// caller's state change, and a background drainer pushes it onto the bus
// afterwards. The source tags every envelope with the emitting service.
func New(c context.Context, source string, pubsub mypubsub.PubSub, queue myqueue.TaskQueuer, nower mytime.Nower) (*transactionalPublisher, func(), error) {
	store, storeCleanup, err := mystore.New[OutboxEntry](c)
	if err != nil {
		return nil, nil, err
	}

	return &transactionalPublisher{
		outbox:    store,
		queue:     queue,
		enveloper: newEnveloper(nower, source),
		pubsub:    pubsub,
		logger:    mylog.New("publisher." + source),
	}, storeCleanup, nil
}

func (p *transactionalPublisher) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/pubsub/trigger/{uid}", p.processTriggerPage()).Methods("PUT")
}

// Start spawns the periodic outbox drainer. The returned func stops it and
// performs a final drain so no stored event is left behind on shutdown.
func (p *transactionalPublisher) Start(c context.Context) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(drainInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				err := p.drain(c)
				if err != nil {
					p.logger.Log(c, "", mylog.SeverityError, "Error draining outbox: %s", err)
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
		_ = p.drain(context.Background())
	}
}

func (p *transactionalPublisher) CreateTopic(c context.Context, topicName string) error {
	return p.pubsub.CreateTopic(c, topicName)
}

func (p *transactionalPublisher) Publish(c context.Context, topic string, event myevents.Event) error {
	envelope, err := p.enveloper.do(c, event)
	if err != nil {
		return fmt.Errorf("error creating envelope: %s", err)
	}

	envelopeJSON, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("error serializing envelope: %s", err)
	}

	entry := OutboxEntry{
		UID:          envelope.EventID,
		Topic:        topic,
		AggregateUID: event.GetAggregateName(),
		CreatedAt:    time.UnixMilli(envelope.Timestamp),
		Published:    false,
		EnvelopeJSON: string(envelopeJSON),
	}

	// Runs inside the caller's transaction: the event is only stored when
	// the surrounding state change commits
	err = p.outbox.Put(c, entry.UID, entry)
	if err != nil {
		return fmt.Errorf("error storing envelope: %s", err)
	}

	err = p.queue.Enqueue(c, myqueue.Task{
		UID:            entry.UID,
		WebhookURLPath: fmt.Sprintf("/pubsub/trigger/%s", entry.UID),
		Payload:        []byte{},
	})
	if err != nil {
		return fmt.Errorf("error queueing publication-trigger %s: %s", entry.UID, err)
	}

	p.logger.Log(c, entry.AggregateUID, mylog.SeverityInfo, "Enqueued event %s on topic %s", envelope, topic)

	return nil
}

func (p *transactionalPublisher) processTriggerPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(p.logger)

		err := p.drain(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Successfully processed trigger",
		})
	}
}

func (p *transactionalPublisher) drain(c context.Context) error {
	return p.outbox.RunInTransaction(c, func(c context.Context) error {
		entries, err := p.outbox.Query(c, []mystore.Filter{{Field: "Published", Compare: "=", Value: false}}, "CreatedAt")
		if err != nil {
			return fmt.Errorf("error fetching unpublished events: %s", err)
		}

		for _, entry := range entries {
			err = p.pubsub.Publish(c, entry.Topic, entry.AggregateUID, entry.EnvelopeJSON)
			if err != nil {
				return fmt.Errorf("error publishing event %s: %s", entry.UID, err)
			}

			entry.Published = true
			err = p.outbox.Put(c, entry.UID, entry)
			if err != nil {
				return fmt.Errorf("error marking event %s as published: %s", entry.UID, err)
			}
		}

		return nil
	})
}
