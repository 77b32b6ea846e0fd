package relayserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"courier/internal/domain"
)

const (
	// maxUploadBytes bounds one attachment upload.
	maxUploadBytes = 64 << 20
	// keepaliveEvery paces SSE comment frames so idle streams survive
	// proxies with read timeouts.
	keepaliveEvery = 25 * time.Second
)

// Server wires the relay's HTTP surface to its storage and fan-out.
type Server struct {
	store  *Store
	notify *Notifier
	blobs  *BlobStore
	log    *zap.Logger
}

// NewServer assembles a relay server.
func NewServer(store *Store, notify *Notifier, blobs *BlobStore, log *zap.Logger) *Server {
	return &Server{store: store, notify: notify, blobs: blobs, log: log}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/bundles", s.handlePublishBundle).Methods(http.MethodPost)
	r.HandleFunc("/v1/bundles/{userID}", s.handleGetBundle).Methods(http.MethodGet)
	r.HandleFunc("/v1/conversations/{id}/messages", s.handleListMessages).Methods(http.MethodGet)
	r.HandleFunc("/v1/conversations/{id}/messages", s.handleSendMessage).Methods(http.MethodPost)
	r.HandleFunc("/v1/conversations/{id}/stream", s.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/v1/conversations/{id}/typing", s.handleTyping).Methods(http.MethodPost)
	r.HandleFunc("/v1/attachments", s.handleUploadAttachment).Methods(http.MethodPost)
	r.HandleFunc("/v1/attachments/{id}", s.handleGetAttachment).Methods(http.MethodGet)
	return r
}

func (s *Server) handlePublishBundle(w http.ResponseWriter, r *http.Request) {
	var b domain.KeyBundle
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		s.clientError(w, http.StatusBadRequest, "malformed bundle")
		return
	}
	if b.UserID == "" || b.DeviceID == "" {
		s.clientError(w, http.StatusBadRequest, "bundle missing user or device id")
		return
	}
	if err := s.store.SaveBundle(r.Context(), b); err != nil {
		s.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	user := domain.UserID(mux.Vars(r)["userID"])
	b, ok, err := s.store.LoadBundle(r.Context(), user)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if !ok {
		s.clientError(w, http.StatusNotFound, "no bundle published")
		return
	}
	s.writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conversation := domain.ConversationID(mux.Vars(r)["id"])
	envs, err := s.store.ListMessages(r.Context(), conversation)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if envs == nil {
		envs = []domain.Envelope{}
	}
	s.writeJSON(w, http.StatusOK, envs)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	conversation := domain.ConversationID(mux.Vars(r)["id"])
	var req domain.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.clientError(w, http.StatusBadRequest, "malformed send request")
		return
	}
	if req.MessageID == "" {
		s.clientError(w, http.StatusBadRequest, "message_id is required")
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = conversation
	}
	if req.ConversationID != conversation {
		s.clientError(w, http.StatusBadRequest, "conversation id mismatch")
		return
	}

	env, err := s.store.SaveMessage(r.Context(), req)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	if err := s.notify.Publish(r.Context(), conversation, domain.Event{
		Type:    domain.EventMessage,
		Message: &env,
	}); err != nil {
		// Delivery falls back to the next history fetch; the write
		// already succeeded, so the send is confirmed regardless.
		s.log.Warn("event publish failed",
			zap.String("conversation", conversation.String()), zap.Error(err))
	}

	s.writeJSON(w, http.StatusOK, struct {
		Message domain.Envelope `json:"message"`
	}{Message: env})
}

// handleStream serves one SSE subscription fed from Redis pub/sub. The
// response stays open until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.clientError(w, http.StatusNotImplemented, "streaming unsupported")
		return
	}
	conversation := domain.ConversationID(mux.Vars(r)["id"])

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := s.notify.Subscribe(r.Context(), conversation)
	keepalive := time.NewTicker(keepaliveEvery)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			raw, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleTyping(w http.ResponseWriter, r *http.Request) {
	conversation := domain.ConversationID(mux.Vars(r)["id"])
	var req struct {
		UserID domain.UserID `json:"user_id"`
		Active bool          `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.clientError(w, http.StatusBadRequest, "malformed typing signal")
		return
	}
	ev := domain.Event{Type: domain.EventTypingStop, UserID: req.UserID}
	if req.Active {
		ev.Type = domain.EventTypingStart
	}
	// Typing is transient: published, never stored.
	if err := s.notify.Publish(r.Context(), conversation, ev); err != nil {
		s.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.clientError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}
	var meta domain.AttachmentMeta
	if err := json.Unmarshal([]byte(r.FormValue("meta")), &meta); err != nil {
		s.clientError(w, http.StatusBadRequest, "malformed attachment meta")
		return
	}
	file, _, err := r.FormFile("blob")
	if err != nil {
		s.clientError(w, http.StatusBadRequest, "missing blob part")
		return
	}
	defer file.Close()
	blob, err := io.ReadAll(file)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	id, err := s.blobs.Save(blob)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if err := s.store.SaveAttachment(r.Context(), id, meta.Mime, int64(len(blob))); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		URL string `json:"url"`
	}{URL: "/v1/attachments/" + id})
}

func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	blob, err := s.blobs.Load(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.clientError(w, http.StatusNotFound, "no such attachment")
			return
		}
		s.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) clientError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	s.clientError(w, http.StatusInternalServerError, "internal error")
}
