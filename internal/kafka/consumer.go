package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"notification-engine/internal/models"
)

// Subscriber receives validated store events. The consumer stays ignorant of
// what processing an event entails.
type Subscriber interface {
	OnEvent(ctx context.Context, evt models.EventContext)
}

type Consumer struct {
	reader     *kafka.Reader
	subscriber Subscriber
	logger     *logrus.Logger
}

func NewConsumer(brokers []string, topic, groupID string, subscriber Subscriber, logger *logrus.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3, // 10KB
			MaxBytes: 10e6, // 10MB
		}),
		subscriber: subscriber,
		logger:     logger,
	}
}

// Start consumes the store-events topic until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Info("kafka consumer started")
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.WithError(err).Error("failed to read message")
				continue
			}

			var evt models.EventContext
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				c.logger.WithError(err).Error("failed to unmarshal event")
				continue
			}
			if evt.TenantID == "" || evt.EventType == "" {
				c.logger.Error("invalid event: missing tenantId or eventType")
				continue
			}

			c.subscriber.OnEvent(ctx, evt)
		}
	}()
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
