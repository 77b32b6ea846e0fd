package relayserver

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"courier/internal/domain"
)

// Notifier fans conversation events out over Redis pub/sub, one channel
// per conversation. Events are transient: anything a subscriber misses
// is recovered through the history fetch, not replayed here.
type Notifier struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewNotifier builds a notifier from a Redis URL.
func NewNotifier(redisURL string, log *zap.Logger) (*Notifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Notifier{rdb: redis.NewClient(opts), log: log}, nil
}

// Close releases the Redis connection pool.
func (n *Notifier) Close() error { return n.rdb.Close() }

func channelFor(conversation domain.ConversationID) string {
	return "conv:" + conversation.String()
}

// Publish sends one event to every live subscriber of the conversation.
func (n *Notifier) Publish(ctx context.Context, conversation domain.ConversationID, ev domain.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, channelFor(conversation), raw).Err()
}

// Subscribe returns a channel of events for the conversation. It closes
// when ctx is cancelled. Malformed frames are logged and skipped.
func (n *Notifier) Subscribe(ctx context.Context, conversation domain.ConversationID) <-chan domain.Event {
	sub := n.rdb.Subscribe(ctx, channelFor(conversation))
	out := make(chan domain.Event)

	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					n.log.Warn("dropping malformed pubsub frame",
						zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
