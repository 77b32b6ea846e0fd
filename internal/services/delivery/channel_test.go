package delivery_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"courier/internal/domain"
	"courier/internal/services/delivery"
)

// streamRelay records the contexts streams were opened with, so tests
// can observe teardown of superseded subscriptions.
type streamRelay struct {
	contexts  []context.Context
	openErr   error
	typingErr error
}

func (r *streamRelay) PublishKeyBundle(context.Context, domain.KeyBundle) error { return nil }

func (r *streamRelay) FetchKeyBundle(context.Context, domain.UserID) (domain.KeyBundle, error) {
	return domain.KeyBundle{}, domain.ErrPeerBundleUnavailable
}

func (r *streamRelay) FetchHistory(context.Context, domain.ConversationID) ([]domain.Envelope, error) {
	return []domain.Envelope{{MessageID: "m1"}}, nil
}

func (r *streamRelay) SendMessage(context.Context, domain.SendRequest) (domain.Envelope, error) {
	return domain.Envelope{}, nil
}

func (r *streamRelay) OpenStream(ctx context.Context, _ domain.ConversationID) (<-chan domain.Event, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	r.contexts = append(r.contexts, ctx)
	ch := make(chan domain.Event)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (r *streamRelay) UploadAttachment(context.Context, []byte, domain.AttachmentMeta) (string, error) {
	return "", nil
}

func (r *streamRelay) FetchAttachment(context.Context, string) ([]byte, error) { return nil, nil }

func (r *streamRelay) Typing(context.Context, domain.ConversationID, domain.UserID, bool) error {
	return r.typingErr
}

func waitClosed(t *testing.T, ch <-chan domain.Event) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel, got event")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed before deadline")
	}
}

func TestOpen_SingleSubscriptionPerConversation(t *testing.T) {
	relay := &streamRelay{}
	c := delivery.New(relay, zap.NewNop())

	first, err := c.Open(context.Background(), "dm:a|b")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	second, err := c.Open(context.Background(), "dm:a|b")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	// Opening again supersedes the first subscription.
	waitClosed(t, first)
	select {
	case <-relay.contexts[0].Done():
	default:
		t.Fatalf("first stream context still live after reopen")
	}

	c.Close("dm:a|b")
	waitClosed(t, second)
}

func TestOpen_IndependentConversations(t *testing.T) {
	relay := &streamRelay{}
	c := delivery.New(relay, zap.NewNop())

	one, err := c.Open(context.Background(), "dm:a|b")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := c.Open(context.Background(), "dm:a|c"); err != nil {
		t.Fatalf("Open second conversation: %v", err)
	}

	// Closing one conversation leaves the other alone.
	c.Close("dm:a|c")
	select {
	case _, ok := <-one:
		if !ok {
			t.Fatalf("unrelated close tore down the other subscription")
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOpen_ErrorDoesNotLeaveSubscription(t *testing.T) {
	relay := &streamRelay{openErr: errors.New("relay down")}
	c := delivery.New(relay, zap.NewNop())

	if _, err := c.Open(context.Background(), "dm:a|b"); err == nil {
		t.Fatalf("want error from Open")
	}

	// A later open must succeed cleanly.
	relay.openErr = nil
	if _, err := c.Open(context.Background(), "dm:a|b"); err != nil {
		t.Fatalf("Open after failure: %v", err)
	}
}

func TestFetchHistory_Passthrough(t *testing.T) {
	c := delivery.New(&streamRelay{}, zap.NewNop())
	envs, err := c.FetchHistory(context.Background(), "dm:a|b")
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(envs) != 1 || envs[0].MessageID != "m1" {
		t.Fatalf("unexpected history: %+v", envs)
	}
}

func TestTyping_FailuresAreSwallowed(t *testing.T) {
	c := delivery.New(&streamRelay{typingErr: errors.New("boom")}, zap.NewNop())
	// Must not panic or surface the error.
	c.Typing(context.Background(), "dm:a|b", "alice", true)
}
