package mypubsub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"github.com/MarcGrol/invoicebackend/lib/mylog"
)

func init() {
	if os.Getenv("KAFKA_BROKERS") != "" {
		New = newKafkaPubSub
	}
}

type kafkaPubSub struct {
	brokers    []string
	writer     *kafka.Writer
	logger     mylog.Logger
	httpClient *http.Client

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mutex        sync.Mutex
	readers      []*kafka.Reader
	disconnected bool
}

func newKafkaPubSub(c context.Context) (PubSub, func(), error) {
	brokers := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")

	// Dial up front so an unreachable broker aborts startup instead of
	// failing on the first publish
	dialCtx, dialCancel := context.WithTimeout(c, 10*time.Second)
	defer dialCancel()
	conn, err := kafka.DialContext(dialCtx, "tcp", brokers[0])
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to kafka broker %s: %s", brokers[0], err)
	}
	conn.Close()

	baseCtx, cancel := context.WithCancel(context.Background())
	ps := &kafkaPubSub{
		brokers: brokers,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{}, // per-partition-key ordering
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		logger:     mylog.New("kafka"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseCtx:    baseCtx,
		cancel:     cancel,
	}

	return ps, func() {
		_ = ps.Disconnect(context.Background())
	}, nil
}

func (ps *kafkaPubSub) CreateTopic(c context.Context, topic string) error {
	conn, err := kafka.DialContext(c, "tcp", ps.brokers[0])
	if err != nil {
		return fmt.Errorf("error connecting to kafka broker %s: %s", ps.brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("error resolving kafka controller: %s", err)
	}

	controllerConn, err := kafka.DialContext(c, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("error connecting to kafka controller: %s", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("error creating topic %s: %s", topic, err)
	}

	return nil
}

func (ps *kafkaPubSub) Subscribe(c context.Context, topic string, group string, urlToPostTo string) error {
	err := ps.CreateTopic(c, topic)
	if err != nil {
		return err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  ps.brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	ps.mutex.Lock()
	ps.readers = append(ps.readers, reader)
	ps.mutex.Unlock()

	ps.wg.Add(1)
	go ps.consumeLoop(reader, topic, group, urlToPostTo)

	ps.logger.Log(c, "", mylog.SeverityInfo, "Subscribed group %s to topic %s -> %s", group, topic, urlToPostTo)

	return nil
}

func (ps *kafkaPubSub) consumeLoop(reader *kafka.Reader, topic string, group string, urlToPostTo string) {
	defer ps.wg.Done()

	for {
		msg, err := reader.FetchMessage(ps.baseCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			ps.logger.Log(ps.baseCtx, "", mylog.SeverityError, "Error fetching from topic %s: %s", topic, err)
			time.Sleep(time.Second)
			continue
		}

		err = deliver(ps.baseCtx, ps.httpClient, urlToPostTo, group, string(msg.Value))
		if err != nil {
			// Retries exhausted: park the message on the dead-letter
			// topic so it is not lost silently
			ps.logger.Log(ps.baseCtx, string(msg.Key), mylog.SeverityError,
				"Failed to deliver message from topic %s to %s, moving to dead-letter: %s", topic, urlToPostTo, err)

			deadErr := ps.writer.WriteMessages(ps.baseCtx, kafka.Message{
				Topic: topic + ".deadletter",
				Key:   msg.Key,
				Value: msg.Value,
			})
			if deadErr != nil {
				ps.logger.Log(ps.baseCtx, string(msg.Key), mylog.SeverityError,
					"Error writing to dead-letter topic of %s: %s", topic, deadErr)
			}
		}

		err = reader.CommitMessages(ps.baseCtx, msg)
		if err != nil && !errors.Is(err, context.Canceled) {
			ps.logger.Log(ps.baseCtx, "", mylog.SeverityError, "Error committing offset on topic %s: %s", topic, err)
		}
	}
}

func (ps *kafkaPubSub) Publish(c context.Context, topic string, partitionKey string, data string) error {
	operation := func() error {
		return ps.writer.WriteMessages(c, kafka.Message{
			Topic: topic,
			Key:   []byte(partitionKey),
			Value: []byte(data),
		})
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, 5), c))
	if err != nil {
		return fmt.Errorf("error publishing on topic %s: %s", topic, err)
	}

	return nil
}

func (ps *kafkaPubSub) Disconnect(c context.Context) error {
	ps.mutex.Lock()
	if ps.disconnected {
		ps.mutex.Unlock()
		return nil
	}
	ps.disconnected = true
	readers := ps.readers
	ps.mutex.Unlock()

	ps.cancel()
	for _, reader := range readers {
		_ = reader.Close()
	}
	ps.wg.Wait()

	// closing the writer flushes in-flight batches
	err := ps.writer.Close()
	if err != nil {
		return fmt.Errorf("error closing kafka writer: %s", err)
	}

	return nil
}
