package mypubsub

import (
	"context"
	"fmt"
	"os"
	"sync"

	"cloud.google.com/go/pubsub"
	grpcCodes "google.golang.org/grpc/codes"
	grpcStatus "google.golang.org/grpc/status"

	"github.com/MarcGrol/invoicebackend/lib/mylog"
)

type gcloudPubSub struct {
	client *pubsub.Client
	logger mylog.Logger

	mutex        sync.Mutex
	topics       map[string]*pubsub.Topic
	disconnected bool
}

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") != "" {
		New = newGcloudPubSub
	}
}

func newGcloudPubSub(c context.Context) (PubSub, func(), error) {
	client, err := pubsub.NewClient(c, os.Getenv("GOOGLE_CLOUD_PROJECT"))
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to pubsub: %s", err)
	}

	ps := &gcloudPubSub{
		client: client,
		logger: mylog.New("pubsub"),
		topics: map[string]*pubsub.Topic{},
	}

	return ps, func() {
		_ = ps.Disconnect(context.Background())
	}, nil
}

func (ps *gcloudPubSub) Subscribe(c context.Context, topicName string, group string, urlToPostTo string) error {
	err := ps.CreateTopic(c, topicName)
	if err != nil {
		return err
	}

	topic := ps.client.Topic(topicName)
	_, err = ps.client.CreateSubscription(c, fmt.Sprintf("%s.%s", group, topicName), pubsub.SubscriptionConfig{
		Topic: topic,
		PushConfig: pubsub.PushConfig{
			Endpoint: urlToPostTo,
		},
		EnableMessageOrdering: true,
	})
	if err != nil {
		status, ok := grpcStatus.FromError(err)
		if ok && status.Code() == grpcCodes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("error subscribing group %s to topic %s: %s", group, topicName, err)
	}

	ps.logger.Log(c, "", mylog.SeverityInfo, "Subscribed group %s to topic %s -> %s", group, topicName, urlToPostTo)

	return nil
}

func (ps *gcloudPubSub) CreateTopic(c context.Context, topicName string) error {
	topic := ps.client.Topic(topicName)
	exists, err := topic.Exists(c)
	if err != nil {
		return fmt.Errorf("error checking if topic %s exists: %s", topicName, err)
	}

	if !exists {
		_, err = ps.client.CreateTopic(c, topicName)
		if err != nil {
			return fmt.Errorf("error creating topic %s: %s", topicName, err)
		}
		ps.logger.Log(c, "", mylog.SeverityInfo, "Created topic %s", topicName)
	}

	return nil
}

func (ps *gcloudPubSub) Publish(c context.Context, topicName string, partitionKey string, data string) error {
	ps.mutex.Lock()
	if ps.disconnected {
		ps.mutex.Unlock()
		return fmt.Errorf("error publishing on topic %s: transport is disconnected", topicName)
	}
	topic, found := ps.topics[topicName]
	if !found {
		topic = ps.client.Topic(topicName)
		topic.EnableMessageOrdering = true
		ps.topics[topicName] = topic
	}
	ps.mutex.Unlock()

	// Get() blocks until the broker acknowledged the message
	_, err := topic.Publish(c, &pubsub.Message{
		Data:        []byte(data),
		OrderingKey: partitionKey,
	}).Get(c)
	if err != nil {
		return fmt.Errorf("error publishing on topic %s: %s", topicName, err)
	}

	return nil
}

func (ps *gcloudPubSub) Disconnect(c context.Context) error {
	ps.mutex.Lock()
	if ps.disconnected {
		ps.mutex.Unlock()
		return nil
	}
	ps.disconnected = true
	topics := ps.topics
	ps.mutex.Unlock()

	// Stop flushes messages that were accepted but not yet sent
	for _, topic := range topics {
		topic.Stop()
	}

	return ps.client.Close()
}
