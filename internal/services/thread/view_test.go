package thread

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"courier/internal/domain"
	"courier/internal/payload"
	attachmentsvc "courier/internal/services/attachment"
	ciphersvc "courier/internal/services/cipher"
	deliverysvc "courier/internal/services/delivery"
)

// noSessions keeps everything on the degraded path so the view tests
// exercise orchestration, not cryptography.
type noSessions struct{}

func (noSessions) Get(domain.UserID) domain.Session { return nil }

func (noSessions) GetOrCreate(context.Context, domain.UserID) (domain.Session, error) {
	return nil, nil
}

func (noSessions) DecryptFrom(domain.UserID, []byte) ([]byte, error) {
	return nil, errors.New("no session")
}

func (noSessions) Drop(domain.UserID) {}

// fakeRelay is an in-memory relay: sends confirm immediately, the stream
// is a plain channel the test feeds.
type fakeRelay struct {
	history    []domain.Envelope
	events     chan domain.Event
	uploadErr  error
	nextServer int
}

func (f *fakeRelay) PublishKeyBundle(context.Context, domain.KeyBundle) error { return nil }

func (f *fakeRelay) FetchKeyBundle(context.Context, domain.UserID) (domain.KeyBundle, error) {
	return domain.KeyBundle{}, domain.ErrPeerBundleUnavailable
}

func (f *fakeRelay) FetchHistory(context.Context, domain.ConversationID) ([]domain.Envelope, error) {
	return f.history, nil
}

func (f *fakeRelay) SendMessage(ctx context.Context, req domain.SendRequest) (domain.Envelope, error) {
	f.nextServer++
	return domain.Envelope{
		ID:             domain.EnvelopeID("srv-1"),
		MessageID:      req.MessageID,
		ConversationID: req.ConversationID,
		SenderUserID:   req.SenderUserID,
		CipherText:     req.CipherText,
		AttachmentURL:  req.AttachmentURL,
		AttachmentMeta: req.AttachmentMeta,
		CreatedAt:      time.Now().UnixMilli(),
	}, nil
}

func (f *fakeRelay) OpenStream(context.Context, domain.ConversationID) (<-chan domain.Event, error) {
	return f.events, nil
}

func (f *fakeRelay) UploadAttachment(context.Context, []byte, domain.AttachmentMeta) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "/v1/attachments/blob-1", nil
}

func (f *fakeRelay) FetchAttachment(context.Context, string) ([]byte, error) {
	return nil, errors.New("not stored")
}

func (f *fakeRelay) Typing(context.Context, domain.ConversationID, domain.UserID, bool) error {
	return nil
}

func openTestView(t *testing.T, ctx context.Context, relay *fakeRelay) *View {
	t.Helper()
	log := zap.NewNop()
	deps := Deps{
		Self:     "alice",
		Device:   "dev",
		Peer:     "bob",
		Sessions: noSessions{},
		Cipher:   ciphersvc.New(noSessions{}, log),
		Codec:    attachmentsvc.New("alice", noSessions{}, log),
		Channel:  deliverysvc.New(relay, log),
		Relay:    relay,
		Log:      log,
	}
	view, err := Open(ctx, deps, domain.DirectConversation("alice", "bob"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return view
}

// waitFor pumps updates until cond holds or the deadline passes.
func waitFor(t *testing.T, view *View, cond func(Update) bool) Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-view.Updates():
			if !ok {
				t.Fatalf("updates channel closed while waiting")
			}
			if cond(u) {
				return u
			}
		case <-deadline:
			t.Fatalf("condition not reached before deadline")
		}
	}
}

func TestView_SendText_OptimisticThenConfirmed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay := &fakeRelay{events: make(chan domain.Event)}
	view := openTestView(t, ctx, relay)

	view.Commands() <- SendText{Body: "hello"}

	u := waitFor(t, view, func(u Update) bool {
		return len(u.Items) == 1 && u.Items[0].Envelope.Status == domain.StatusSent
	})
	item := u.Items[0]
	if item.Envelope.ID != "srv-1" {
		t.Fatalf("confirmed envelope id: want srv-1, got %q", item.Envelope.ID)
	}
	if item.Text != "hello" {
		t.Fatalf("plaintext: want hello, got %q", item.Text)
	}
	if item.Envelope.MessageID == "" {
		t.Fatalf("message id lost across confirmation")
	}
}

func TestView_FailedUploadMarksFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay := &fakeRelay{events: make(chan domain.Event), uploadErr: context.Canceled}
	view := openTestView(t, ctx, relay)

	view.Commands() <- SendFile{Content: []byte("payload"), Mime: "text/plain"}

	waitFor(t, view, func(u Update) bool {
		return len(u.Items) == 1 && u.Items[0].Envelope.Status == domain.StatusFailed
	})
}

func TestView_StreamMessageFromPeer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay := &fakeRelay{events: make(chan domain.Event)}
	view := openTestView(t, ctx, relay)

	relay.events <- domain.Event{
		Type: domain.EventMessage,
		Message: &domain.Envelope{
			ID:             "srv-9",
			MessageID:      "m-peer",
			ConversationID: domain.DirectConversation("alice", "bob"),
			SenderUserID:   "bob",
			CipherText:     payload.Degraded([]byte("hi alice")).Encode(),
			CreatedAt:      time.Now().UnixMilli(),
		},
	}

	u := waitFor(t, view, func(u Update) bool { return len(u.Items) == 1 })
	if u.Items[0].Text != "hi alice" {
		t.Fatalf("peer message text: want %q, got %q", "hi alice", u.Items[0].Text)
	}
}

func TestView_TypingEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay := &fakeRelay{events: make(chan domain.Event)}
	view := openTestView(t, ctx, relay)

	relay.events <- domain.Event{Type: domain.EventTypingStart, UserID: "bob"}
	waitFor(t, view, func(u Update) bool { return u.PeerTyping })

	relay.events <- domain.Event{Type: domain.EventTypingStop, UserID: "bob"}
	waitFor(t, view, func(u Update) bool { return !u.PeerTyping })
}

func TestView_HistoryLoadsBeforeStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay := &fakeRelay{
		events: make(chan domain.Event),
		history: []domain.Envelope{
			{
				ID:           "srv-1",
				MessageID:    "m1",
				SenderUserID: "bob",
				CipherText:   payload.Degraded([]byte("earlier")).Encode(),
				CreatedAt:    1000,
			},
		},
	}
	view := openTestView(t, ctx, relay)

	u := waitFor(t, view, func(u Update) bool { return len(u.Items) == 1 })
	if u.Items[0].Text != "earlier" {
		t.Fatalf("history text: want %q, got %q", "earlier", u.Items[0].Text)
	}

	// A stream duplicate of the same envelope must not double it.
	relay.events <- domain.Event{
		Type:    domain.EventMessage,
		Message: &relay.history[0],
	}
	relay.events <- domain.Event{Type: domain.EventTypingStart, UserID: "bob"}
	u = waitFor(t, view, func(u Update) bool { return u.PeerTyping })
	if len(u.Items) != 1 {
		t.Fatalf("stream duplicate doubled the history entry: %d items", len(u.Items))
	}
}
