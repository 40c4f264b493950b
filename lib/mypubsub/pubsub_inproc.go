package mypubsub

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/MarcGrol/invoicebackend/lib/mylog"
)

func init() {
	if os.Getenv("KAFKA_BROKERS") == "" && os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		New = NewInprocPubSub
	}
}

type inprocSubscription struct {
	topic      string
	group      string
	url        string
	deliveries chan string
}

// InprocPubSub is a loopback bus for development and tests. It keeps the
// contract honest: delivery is asynchronous via HTTP push, per-subscription
// in-order, and failed deliveries end up on an inspectable dead-letter list
// after retries are exhausted.
type InprocPubSub struct {
	logger     mylog.Logger
	httpClient *http.Client

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mutex         sync.Mutex
	subscriptions map[string][]*inprocSubscription
	deadLetters   []string
	disconnected  bool
}

func NewInprocPubSub(c context.Context) (PubSub, func(), error) {
	baseCtx, cancel := context.WithCancel(context.Background())
	ps := &InprocPubSub{
		logger:        mylog.New("inprocbus"),
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		baseCtx:       baseCtx,
		cancel:        cancel,
		subscriptions: map[string][]*inprocSubscription{},
	}

	return ps, func() {
		_ = ps.Disconnect(context.Background())
	}, nil
}

func (ps *InprocPubSub) CreateTopic(c context.Context, topic string) error {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	if _, found := ps.subscriptions[topic]; !found {
		ps.subscriptions[topic] = []*inprocSubscription{}
	}

	return nil
}

func (ps *InprocPubSub) Subscribe(c context.Context, topic string, group string, urlToPostTo string) error {
	sub := &inprocSubscription{
		topic:      topic,
		group:      group,
		url:        urlToPostTo,
		deliveries: make(chan string, 256),
	}

	ps.mutex.Lock()
	if ps.disconnected {
		ps.mutex.Unlock()
		return fmt.Errorf("error subscribing to topic %s: transport is disconnected", topic)
	}
	ps.subscriptions[topic] = append(ps.subscriptions[topic], sub)
	ps.mutex.Unlock()

	// a single worker per subscription preserves delivery order
	ps.wg.Add(1)
	go ps.deliveryLoop(sub)

	return nil
}

func (ps *InprocPubSub) deliveryLoop(sub *inprocSubscription) {
	defer ps.wg.Done()

	for data := range sub.deliveries {
		err := deliver(ps.baseCtx, ps.httpClient, sub.url, sub.group, data)
		if err != nil {
			ps.logger.Log(ps.baseCtx, "", mylog.SeverityError,
				"Failed to deliver message from topic %s to %s, moving to dead-letter: %s", sub.topic, sub.url, err)

			ps.mutex.Lock()
			ps.deadLetters = append(ps.deadLetters, data)
			ps.mutex.Unlock()
		}
	}
}

func (ps *InprocPubSub) Publish(c context.Context, topic string, partitionKey string, data string) error {
	ps.mutex.Lock()
	if ps.disconnected {
		ps.mutex.Unlock()
		return fmt.Errorf("error publishing on topic %s: transport is disconnected", topic)
	}
	subs := ps.subscriptions[topic]
	ps.mutex.Unlock()

	for _, sub := range subs {
		sub.deliveries <- data
	}

	return nil
}

func (ps *InprocPubSub) Disconnect(c context.Context) error {
	ps.mutex.Lock()
	if ps.disconnected {
		ps.mutex.Unlock()
		return nil
	}
	ps.disconnected = true
	subs := ps.subscriptions
	ps.mutex.Unlock()

	// closing the channels lets the workers drain what is in flight
	for _, topicSubs := range subs {
		for _, sub := range topicSubs {
			close(sub.deliveries)
		}
	}
	ps.wg.Wait()
	ps.cancel()

	return nil
}

// DeadLetters exposes undeliverable messages for inspection in tests.
func (ps *InprocPubSub) DeadLetters() []string {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	return append([]string{}, ps.deadLetters...)
}
