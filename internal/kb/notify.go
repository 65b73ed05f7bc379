package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
)

// Notifier publishes KB lifecycle notifications (uploads, OCR
// completion, terms-ready) to a Pub/Sub topic. It creates the topic if
// it does not exist.
type Notifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *log.Logger
}

func NewNotifier(projectID, topicID string) (*Notifier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("topic.Exists: %w", err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("CreateTopic: %w", err)
		}
		slog.Info("created Pub/Sub topic", "topic_id", topicID)
	}

	// Ordering by user keeps one user's documents sequential.
	topic.EnableMessageOrdering = true

	n := &Notifier{
		client: client,
		topic:  topic,
		logger: log.New(log.Writer(), "[KB-NOTIFY] ", log.LstdFlags),
	}
	n.logger.Printf("✅ Connected to Pub/Sub topic: projects/%s/topics/%s", projectID, topicID)
	return n, nil
}

// Publish serializes the payload and publishes it keyed by userID. The
// publish result is checked off the hot path.
func (n *Notifier) Publish(ctx context.Context, userID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  map[string]string{"user_id": userID},
		OrderingKey: userID,
	})

	go func() {
		msgID, err := result.Get(context.Background())
		if err != nil {
			n.logger.Printf("❌ Pub/Sub publish failed for user %s: %v", userID, err)
			return
		}
		n.logger.Printf("📤 Published notification → msgID=%s (user=%s)", msgID, userID)
	}()
	return nil
}

// Subscribe pulls messages from subscriptionID and hands the raw
// payload to fn. A handler error nacks the message for redelivery.
func (n *Notifier) Subscribe(ctx context.Context, subscriptionID string, fn func(ctx context.Context, data []byte) error) error {
	sub := n.client.Subscription(subscriptionID)
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := fn(ctx, msg.Data); err != nil {
			n.logger.Printf("⚠️ handler error, nacking message %s: %v", msg.ID, err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (n *Notifier) Close() error {
	n.topic.Stop()
	if err := n.client.Close(); err != nil {
		return fmt.Errorf("pubsub client close: %w", err)
	}
	n.logger.Printf("🔌 Pub/Sub client closed")
	return nil
}
