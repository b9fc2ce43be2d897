package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Notification statuses.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// NotifyMessage is published on the owner's channel and forwarded to their
// websocket connections as is.
type NotifyMessage struct {
	Status        string `json:"status"`
	ResumeID      uint   `json:"resume_id"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// Notifier delivers task outcomes to a user.
type Notifier interface {
	Notify(ctx context.Context, userID uint, msg NotifyMessage) error
}

// NotifyChannel is the Redis pub/sub channel for userID.
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// RedisNotifier publishes notifications over Redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, userID uint, msg NotifyMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(userID)
	if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

// RedisFeed reads the channels RedisNotifier publishes on.
type RedisFeed struct {
	client redis.UniversalClient
}

func NewRedisFeed(client redis.UniversalClient) *RedisFeed {
	return &RedisFeed{client: client}
}

// Subscribe streams the raw payloads published for userID until ctx ends or
// the returned close function is called.
func (f *RedisFeed) Subscribe(ctx context.Context, userID uint) (<-chan string, func() error) {
	pubsub := f.client.Subscribe(ctx, NotifyChannel(userID))
	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, pubsub.Close
}
