package thread

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"courier/internal/domain"
)

// PlaceholderUndecryptable renders in place of a message body that could
// not be recovered by any path.
const PlaceholderUndecryptable = "[undecryptable message]"

// streamRetryDelay paces stream reconnects after a server disconnect.
const streamRetryDelay = 2 * time.Second

// Command is the typed input of a conversation view. The composer holds
// the sending side of the command channel; the view goroutine holds the
// receiving side.
type Command interface{ isCommand() }

// SendText sends a text message.
type SendText struct{ Body string }

// SendFile sends an encrypted attachment.
type SendFile struct {
	Content []byte
	Mime    string
}

// SetTyping signals whether the local user is composing.
type SetTyping struct{ Active bool }

func (SendText) isCommand()  {}
func (SendFile) isCommand()  {}
func (SetTyping) isCommand() {}

// Item is one rendered conversation entry.
type Item struct {
	Envelope domain.Envelope
	Text     string
}

// Update is a full render snapshot pushed to the UI after every state
// change.
type Update struct {
	Items      []Item
	PeerTyping bool
}

// Deps are the collaborators a conversation view needs.
type Deps struct {
	Self     domain.UserID
	Device   domain.DeviceID
	Peer     domain.UserID
	Sessions domain.SessionManager
	Cipher   domain.MessageCipher
	Codec    domain.AttachmentCodec
	Channel  domain.DeliveryChannel
	Relay    domain.RelayClient
	Log      *zap.Logger
}

// View drives one open conversation: a single goroutine owns the state
// machine and serialises commands, stream events, and reconnects.
type View struct {
	deps         Deps
	conversation domain.ConversationID
	state        *State

	cmds       chan Command
	updates    chan Update
	peerTyping bool
}

// Open loads a conversation and starts its view goroutine. History is
// fetched and decrypted to completion before the live stream is opened,
// so catch-up has no gap; the overlap window the other way is absorbed
// by deduplication.
func Open(ctx context.Context, deps Deps, conversation domain.ConversationID) (*View, error) {
	v := &View{
		deps:         deps,
		conversation: conversation,
		state:        NewState(conversation),
		cmds:         make(chan Command, 16),
		updates:      make(chan Update, 1),
	}

	history, err := deps.Channel.FetchHistory(ctx, conversation)
	if err != nil {
		return nil, err
	}
	for _, e := range history {
		if v.state.Ingest(e) {
			v.fillPlaintext(e)
		}
	}

	events, err := deps.Channel.Open(ctx, conversation)
	if err != nil {
		return nil, err
	}

	go v.run(ctx, events)
	return v, nil
}

// Commands returns the channel the composer sends on.
func (v *View) Commands() chan<- Command { return v.cmds }

// Updates returns the channel render snapshots arrive on. It carries the
// latest snapshot only; a slow consumer sees the newest state, not every
// intermediate one. The channel closes when the view shuts down.
func (v *View) Updates() <-chan Update { return v.updates }

// DownloadAttachment fetches and decrypts the attachment of one message.
// Safe to call from outside the view goroutine.
func (v *View) DownloadAttachment(ctx context.Context, id domain.MessageID) ([]byte, error) {
	e, ok := v.state.Find(id)
	if !ok || e.AttachmentURL == "" || e.AttachmentMeta == nil {
		return nil, domain.ErrAttachmentUnavailable
	}
	blob, err := v.deps.Relay.FetchAttachment(ctx, e.AttachmentURL)
	if err != nil {
		return nil, err
	}
	return v.deps.Codec.Decrypt(ctx, v.deps.Self, e.SenderUserID, blob, *e.AttachmentMeta)
}

func (v *View) run(ctx context.Context, events <-chan domain.Event) {
	defer v.deps.Channel.Close(v.conversation)
	defer close(v.updates)

	v.publish()
	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-v.cmds:
			v.handleCommand(ctx, cmd)

		case ev, ok := <-events:
			if !ok {
				events = v.reopenStream(ctx)
				if events == nil {
					return
				}
				continue
			}
			v.handleEvent(ev)
		}
	}
}

// reopenStream re-subscribes after a server disconnect, pacing retries.
// Catch-up for envelopes missed while disconnected goes through a fresh
// history fetch; deduplication drops what we already hold.
func (v *View) reopenStream(ctx context.Context) <-chan domain.Event {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(streamRetryDelay):
		}

		history, err := v.deps.Channel.FetchHistory(ctx, v.conversation)
		if err == nil {
			changed := false
			for _, e := range history {
				if v.state.Ingest(e) {
					v.fillPlaintext(e)
					changed = true
				}
			}
			if changed {
				v.publish()
			}
		}

		events, err := v.deps.Channel.Open(ctx, v.conversation)
		if err == nil {
			v.deps.Log.Info("stream reconnected",
				zap.String("conversation", v.conversation.String()))
			return events
		}
		v.deps.Log.Warn("stream reconnect failed",
			zap.String("conversation", v.conversation.String()), zap.Error(err))
	}
}

func (v *View) handleCommand(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case SendText:
		v.sendText(ctx, c.Body)
	case SendFile:
		v.sendFile(ctx, c)
	case SetTyping:
		v.deps.Channel.Typing(ctx, v.conversation, v.deps.Self, c.Active)
	}
}

func (v *View) handleEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventMessage:
		if ev.Message == nil {
			return
		}
		e := *ev.Message
		if e.SenderUserID == v.deps.Self {
			// Our own echo from the server: confirmation that the
			// conversation has it.
			v.state.Reconcile(e)
			v.state.MarkStatus(e.MessageID, domain.StatusDelivered)
		} else if v.state.Ingest(e) {
			v.fillPlaintext(e)
		}
		v.publish()

	case domain.EventTypingStart:
		if ev.UserID != v.deps.Self {
			v.peerTyping = true
			v.publish()
		}
	case domain.EventTypingStop:
		if ev.UserID != v.deps.Self {
			v.peerTyping = false
			v.publish()
		}
	}
}

// sendText runs the optimistic send path: render immediately as sending,
// then encrypt and post, then reconcile the confirmed envelope.
func (v *View) sendText(ctx context.Context, body string) {
	id := domain.MessageID(uuid.NewString())
	v.state.AddOptimistic(domain.Envelope{
		MessageID:      id,
		ConversationID: v.conversation,
		SenderUserID:   v.deps.Self,
		SenderDeviceID: v.deps.Device,
		CreatedAt:      time.Now().UnixMilli(),
	})
	v.state.SetPlaintext(id, body)
	v.publish()

	sess, err := v.deps.Sessions.GetOrCreate(ctx, v.deps.Peer)
	if err != nil {
		v.fail(id, "session", err)
		return
	}
	cipherText, err := v.deps.Cipher.EncryptText(sess, body)
	if err != nil {
		v.fail(id, "encrypt", err)
		return
	}

	confirmed, err := v.deps.Relay.SendMessage(ctx, domain.SendRequest{
		ConversationID: v.conversation,
		SenderUserID:   v.deps.Self,
		SenderDeviceID: v.deps.Device,
		MessageID:      id,
		CipherText:     cipherText,
	})
	if err != nil {
		v.fail(id, "send", err)
		return
	}
	v.state.Reconcile(confirmed)
	v.state.MarkStatus(id, domain.StatusSent)
	v.publish()
}

// sendFile encrypts and uploads the blob before the message itself is
// posted. An upload that fails or is cancelled mid-transfer marks the
// optimistic entry failed; it must never surface as sent.
func (v *View) sendFile(ctx context.Context, c SendFile) {
	id := domain.MessageID(uuid.NewString())
	v.state.AddOptimistic(domain.Envelope{
		MessageID:      id,
		ConversationID: v.conversation,
		SenderUserID:   v.deps.Self,
		SenderDeviceID: v.deps.Device,
		CreatedAt:      time.Now().UnixMilli(),
	})
	v.state.SetPlaintext(id, "["+c.Mime+" attachment]")
	v.publish()

	blob, meta, err := v.deps.Codec.Encrypt(ctx, c.Content, c.Mime, []domain.UserID{v.deps.Self, v.deps.Peer})
	if err != nil {
		v.fail(id, "attachment encrypt", err)
		return
	}
	url, err := v.deps.Relay.UploadAttachment(ctx, blob, meta)
	if err != nil {
		v.fail(id, "attachment upload", err)
		return
	}

	sess, err := v.deps.Sessions.GetOrCreate(ctx, v.deps.Peer)
	if err != nil {
		v.fail(id, "session", err)
		return
	}
	cipherText, err := v.deps.Cipher.EncryptText(sess, "")
	if err != nil {
		v.fail(id, "encrypt", err)
		return
	}

	confirmed, err := v.deps.Relay.SendMessage(ctx, domain.SendRequest{
		ConversationID: v.conversation,
		SenderUserID:   v.deps.Self,
		SenderDeviceID: v.deps.Device,
		MessageID:      id,
		CipherText:     cipherText,
		AttachmentURL:  url,
		AttachmentMeta: &meta,
	})
	if err != nil {
		v.fail(id, "send", err)
		return
	}
	v.state.Reconcile(confirmed)
	v.state.MarkStatus(id, domain.StatusSent)
	v.publish()
}

func (v *View) fail(id domain.MessageID, step string, err error) {
	v.deps.Log.Warn("message failed",
		zap.String("conversation", v.conversation.String()),
		zap.String("message", id.String()),
		zap.String("step", step),
		zap.Error(err))
	v.state.MarkStatus(id, domain.StatusFailed)
	v.publish()
}

// fillPlaintext decrypts one ingested envelope into the plaintext cache.
// Failure caches the placeholder instead; decryption never aborts the
// conversation.
func (v *View) fillPlaintext(e domain.Envelope) {
	if _, ok := v.state.Plaintext(e.MessageID); ok {
		return
	}
	if e.CipherText == "" {
		return
	}
	pt, ok := v.deps.Cipher.DecryptText(e.SenderUserID, e.CipherText)
	if !ok {
		pt = PlaceholderUndecryptable
	}
	v.state.SetPlaintext(e.MessageID, pt)
}

// publish replaces whatever snapshot the UI has not consumed yet with
// the current one.
func (v *View) publish() {
	snapshot := v.state.Snapshot()
	items := make([]Item, len(snapshot))
	for i, e := range snapshot {
		text, _ := v.state.Plaintext(e.MessageID)
		items[i] = Item{Envelope: e, Text: text}
	}
	u := Update{Items: items, PeerTyping: v.peerTyping}

	select {
	case <-v.updates:
	default:
	}
	select {
	case v.updates <- u:
	default:
	}
}
