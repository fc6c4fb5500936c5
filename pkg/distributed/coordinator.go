package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event types published on the matchmaking channel
const (
	EventPlayerEnqueued = "player_enqueued"
	EventPassRequested  = "pass_requested"
)

// BucketEvent asks every instance to consider a grouping pass for one bucket
type BucketEvent struct {
	Type      string    `json:"type"`
	Region    string    `json:"region"`
	Mode      string    `json:"mode"`
	PlayerID  string    `json:"player_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Coordinator fans grouping-pass triggers out across instances via Redis Pub/Sub
type Coordinator struct {
	client     *redis.Client
	logger     *zap.Logger
	instanceID string

	eventChannel string
	stopChan     chan struct{}
	cancelSub    context.CancelFunc
}

// NewCoordinator creates a pass coordinator
func NewCoordinator(client *redis.Client, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		client:       client,
		logger:       logger,
		instanceID:   uuid.New().String(),
		eventChannel: "matchmaking:events",
		stopChan:     make(chan struct{}),
	}
}

// InstanceID identifies this process, used as the bucket lock owner value
func (c *Coordinator) InstanceID() string {
	return c.instanceID
}

// Start subscribes and dispatches incoming events to handler until Stop
func (c *Coordinator) Start(ctx context.Context, handler func(event BucketEvent)) error {
	subCtx, cancel := context.WithCancel(ctx)
	c.cancelSub = cancel

	pubsub := c.client.Subscribe(subCtx, c.eventChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.logger.Info("Matchmaking coordinator started",
		zap.String("instance_id", c.instanceID),
		zap.String("channel", c.eventChannel))

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				continue
			}

			var event BucketEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				c.logger.Error("Failed to unmarshal event", zap.Error(err))
				continue
			}

			c.logger.Debug("Received bucket event",
				zap.String("type", event.Type),
				zap.String("region", event.Region),
				zap.String("mode", event.Mode))

			handler(event)

		case <-c.stopChan:
			c.logger.Info("Matchmaking coordinator stopped")
			return nil

		case <-subCtx.Done():
			return subCtx.Err()
		}
	}
}

// Stop ends the subscription loop
func (c *Coordinator) Stop() {
	close(c.stopChan)
	if c.cancelSub != nil {
		c.cancelSub()
	}
}

// Publish broadcasts a bucket event to all instances
func (c *Coordinator) Publish(ctx context.Context, event BucketEvent) error {
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.client.Publish(ctx, c.eventChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
