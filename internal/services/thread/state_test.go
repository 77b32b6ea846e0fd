package thread

import (
	"testing"

	"courier/internal/domain"
)

func env(id domain.EnvelopeID, msgID domain.MessageID, createdAt int64) domain.Envelope {
	return domain.Envelope{
		ID:             id,
		MessageID:      msgID,
		ConversationID: "dm:a|b",
		SenderUserID:   "alice",
		CipherText:     "p1:",
		CreatedAt:      createdAt,
	}
}

func order(s *State) []domain.MessageID {
	var out []domain.MessageID
	for _, e := range s.Snapshot() {
		out = append(out, e.MessageID)
	}
	return out
}

func TestIngest_OrderedByCreatedAt(t *testing.T) {
	s := NewState("dm:a|b")

	// Arrival order T+2, T, T+1 must render T, T+1, T+2.
	s.Ingest(env("3", "m3", 1002))
	s.Ingest(env("1", "m1", 1000))
	s.Ingest(env("2", "m2", 1001))

	got := order(s)
	want := []domain.MessageID{"m1", "m2", "m3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: want %v, got %v", want, got)
		}
	}
}

func TestIngest_TiesKeepInsertionOrder(t *testing.T) {
	s := NewState("dm:a|b")
	s.Ingest(env("1", "m1", 1000))
	s.Ingest(env("2", "m2", 1000))
	s.Ingest(env("3", "m3", 1000))

	got := order(s)
	want := []domain.MessageID{"m1", "m2", "m3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie order: want %v, got %v", want, got)
		}
	}
}

func TestIngest_DeduplicatesOnIDOrMessageID(t *testing.T) {
	s := NewState("dm:a|b")

	if !s.Ingest(env("1", "m1", 1000)) {
		t.Fatalf("first ingest reported duplicate")
	}
	if s.Ingest(env("1", "m1", 1000)) {
		t.Fatalf("exact duplicate reported new")
	}
	// Same logical message under a different confirmed id.
	if s.Ingest(env("9", "m1", 1000)) {
		t.Fatalf("message id duplicate reported new")
	}
	// Same confirmed id, different message id field.
	if s.Ingest(env("9", "mX", 1000)) {
		t.Fatalf("envelope id duplicate reported new")
	}
	if n := len(s.Snapshot()); n != 1 {
		t.Fatalf("want 1 entry after duplicate ingests, got %d", n)
	}
}

func TestReconcile_SwapsOptimisticInPlace(t *testing.T) {
	s := NewState("dm:a|b")
	s.Ingest(env("1", "m1", 1000))
	s.AddOptimistic(env("", "m2", 1001))
	s.Ingest(env("3", "m3", 1002))

	// Confirmation arrives with a server id and timestamp. The entry must
	// keep its position and message id.
	s.Reconcile(env("srv-2", "m2", 1005))

	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("want 3 entries, got %d", len(snap))
	}
	if snap[1].MessageID != "m2" || snap[1].ID != "srv-2" {
		t.Fatalf("swap lost position or identity: %+v", snap[1])
	}
}

func TestReconcile_IdempotentSend(t *testing.T) {
	s := NewState("dm:a|b")
	s.AddOptimistic(env("", "m1", 1000))

	// A retried send confirms the same messageId twice.
	s.Reconcile(env("srv-1", "m1", 1001))
	s.Reconcile(env("srv-1", "m1", 1001))

	if n := len(s.Snapshot()); n != 1 {
		t.Fatalf("retried confirmation duplicated the message: %d entries", n)
	}
}

func TestMarkStatus_LadderAndTerminalFailed(t *testing.T) {
	s := NewState("dm:a|b")
	s.AddOptimistic(env("", "m1", 1000))

	s.MarkStatus("m1", domain.StatusSent)
	s.MarkStatus("m1", domain.StatusDelivered)
	// Regression attempt is ignored.
	s.MarkStatus("m1", domain.StatusSent)
	if e, _ := s.Find("m1"); e.Status != domain.StatusDelivered {
		t.Fatalf("want delivered, got %q", e.Status)
	}

	s.MarkStatus("m1", domain.StatusFailed)
	// Failed is terminal: no later signal revives the message.
	s.MarkStatus("m1", domain.StatusRead)
	if e, _ := s.Find("m1"); e.Status != domain.StatusFailed {
		t.Fatalf("failed not terminal: got %q", e.Status)
	}
}

func TestPlaintextCache(t *testing.T) {
	s := NewState("dm:a|b")
	s.AddOptimistic(env("", "m1", 1000))
	s.SetPlaintext("m1", "hello")

	// The cache key survives the optimistic-to-confirmed swap.
	s.Reconcile(env("srv-1", "m1", 1001))
	if text, ok := s.Plaintext("m1"); !ok || text != "hello" {
		t.Fatalf("plaintext lost across reconcile: %q ok=%v", text, ok)
	}
	if _, ok := s.Plaintext("m2"); ok {
		t.Fatalf("unknown message reported cached plaintext")
	}
}
