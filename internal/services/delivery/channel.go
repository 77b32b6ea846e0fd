package delivery

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"courier/internal/domain"
)

// Channel implements domain.DeliveryChannel over the relay client. It
// enforces the single-subscription invariant: opening a conversation's
// stream tears down any previous subscription for it first.
type Channel struct {
	relay domain.RelayClient
	log   *zap.Logger

	mu   sync.Mutex
	subs map[domain.ConversationID]context.CancelFunc
}

// New constructs a delivery channel.
func New(relay domain.RelayClient, log *zap.Logger) *Channel {
	return &Channel{
		relay: relay,
		log:   log,
		subs:  make(map[domain.ConversationID]context.CancelFunc),
	}
}

// FetchHistory returns every envelope already stored for the
// conversation. Callers must let this complete before Open so the
// catch-up window has no gap; the state machine's deduplication absorbs
// the overlap the other way.
func (c *Channel) FetchHistory(
	ctx context.Context,
	conversation domain.ConversationID,
) ([]domain.Envelope, error) {
	return c.relay.FetchHistory(ctx, conversation)
}

// Open starts the live event stream for a conversation, replacing any
// existing subscription for it. The returned channel closes when the
// subscription ends, by Close, ctx cancellation, or server disconnect.
func (c *Channel) Open(
	ctx context.Context,
	conversation domain.ConversationID,
) (<-chan domain.Event, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if prev, ok := c.subs[conversation]; ok {
		prev()
	}
	c.subs[conversation] = cancel
	c.mu.Unlock()

	events, err := c.relay.OpenStream(streamCtx, conversation)
	if err != nil {
		c.mu.Lock()
		delete(c.subs, conversation)
		c.mu.Unlock()
		cancel()
		return nil, err
	}
	return events, nil
}

// Close cancels the live subscription for a conversation, if any.
func (c *Channel) Close(conversation domain.ConversationID) {
	c.mu.Lock()
	cancel, ok := c.subs[conversation]
	delete(c.subs, conversation)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// Typing is fire-and-forget: a lost typing signal costs nothing, so
// failures are logged and never surfaced.
func (c *Channel) Typing(
	ctx context.Context,
	conversation domain.ConversationID,
	user domain.UserID,
	active bool,
) {
	if err := c.relay.Typing(ctx, conversation, user, active); err != nil {
		c.log.Debug("typing signal dropped",
			zap.String("conversation", conversation.String()), zap.Error(err))
	}
}

var _ domain.DeliveryChannel = (*Channel)(nil)
