package thread

import (
	"sync"

	"courier/internal/domain"
)

// State is the envelope list of one conversation plus its decrypted
// plaintext cache and per-message delivery statuses. The plaintext cache
// lives in memory only and is keyed by message id, which is stable across
// the optimistic-to-confirmed swap.
type State struct {
	mu           sync.Mutex
	conversation domain.ConversationID

	items     []domain.Envelope
	status    map[domain.MessageID]domain.Status
	plaintext map[domain.MessageID]string
}

// NewState creates empty conversation state.
func NewState(conversation domain.ConversationID) *State {
	return &State{
		conversation: conversation,
		status:       make(map[domain.MessageID]domain.Status),
		plaintext:    make(map[domain.MessageID]string),
	}
}

// AddOptimistic appends a locally created, not-yet-confirmed envelope.
// It renders immediately with status sending.
func (s *State) AddOptimistic(e domain.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.Status = domain.StatusSending
	s.status[e.MessageID] = domain.StatusSending
	s.insertOrdered(e)
}

// Ingest applies one envelope from history or the live stream.
// Duplicates (matched on id or message id) update the stored copy in
// place, so an optimistic entry confirmed later keeps its position.
// It reports whether the envelope was new to this state.
func (s *State) Ingest(e domain.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(e)
}

// Reconcile applies the confirmed envelope returned by a send. Same
// semantics as Ingest; the split exists because callers advance status
// differently for the two paths.
func (s *State) Reconcile(confirmed domain.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(confirmed)
}

func (s *State) apply(e domain.Envelope) bool {
	if i, ok := s.find(e.ID, e.MessageID); ok {
		// In-place swap: confirmed data replaces the optimistic entry
		// without moving it, and without regressing its status.
		st := s.statusFor(s.items[i].MessageID)
		s.items[i] = e
		if st != "" {
			s.items[i].Status = st
		}
		return false
	}
	if st, ok := s.status[e.MessageID]; ok && st != "" {
		e.Status = st
	}
	s.insertOrdered(e)
	return true
}

// MarkStatus advances a message along the delivery ladder. Failed is
// terminal and reachable from anywhere; other statuses never move
// backwards.
func (s *State) MarkStatus(id domain.MessageID, status domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.status[id]
	if current == domain.StatusFailed {
		return
	}
	if status != domain.StatusFailed && status.Rank() <= current.Rank() {
		return
	}
	s.status[id] = status
	for i := range s.items {
		if s.items[i].MessageID == id {
			s.items[i].Status = status
			break
		}
	}
}

// SetPlaintext caches the decrypted body of one message.
func (s *State) SetPlaintext(id domain.MessageID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plaintext[id] = text
}

// Plaintext returns the cached decrypted body of one message.
func (s *State) Plaintext(id domain.MessageID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.plaintext[id]
	return text, ok
}

// Find returns the stored envelope for a message id.
func (s *State) Find(id domain.MessageID) (domain.Envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].MessageID == id {
			return s.items[i], true
		}
	}
	return domain.Envelope{}, false
}

// Snapshot returns a copy of the envelope list in render order.
func (s *State) Snapshot() []domain.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Envelope, len(s.items))
	copy(out, s.items)
	return out
}

// insertOrdered places e by CreatedAt, keeping insertion order among
// equal timestamps.
func (s *State) insertOrdered(e domain.Envelope) {
	i := len(s.items)
	for i > 0 && s.items[i-1].CreatedAt > e.CreatedAt {
		i--
	}
	s.items = append(s.items, domain.Envelope{})
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = e
}

func (s *State) find(id domain.EnvelopeID, msgID domain.MessageID) (int, bool) {
	for i := range s.items {
		if (id != "" && s.items[i].ID == id) || s.items[i].MessageID == msgID {
			return i, true
		}
	}
	return -1, false
}

func (s *State) statusFor(id domain.MessageID) domain.Status {
	if st, ok := s.status[id]; ok {
		return st
	}
	return ""
}
