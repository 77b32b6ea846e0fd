package relayserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"courier/internal/domain"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS bundles (
		user_id   TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		bundle    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bundle_prekeys (
		prekey_id TEXT PRIMARY KEY,
		user_id   TEXT NOT NULL,
		prekey    JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bundle_prekeys_user_idx
		ON bundle_prekeys (user_id)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id               UUID PRIMARY KEY,
		message_id       TEXT NOT NULL UNIQUE,
		conversation_id  TEXT NOT NULL,
		sender_user_id   TEXT NOT NULL,
		sender_device_id TEXT NOT NULL DEFAULT '',
		cipher_text      TEXT NOT NULL,
		attachment_url   TEXT NOT NULL DEFAULT '',
		attachment_meta  JSONB,
		created_at       BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_idx
		ON messages (conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id   UUID PRIMARY KEY,
		mime TEXT NOT NULL,
		size BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Store is the Postgres persistence layer of the relay server.
type Store struct {
	db *sql.DB
}

// OpenStore connects to Postgres and applies migrations.
func OpenStore(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database pool.
func (s *Store) Close() error { return s.db.Close() }

// SaveBundle upserts a user's published key bundle. The one-time pre-key
// pool is split out into its own rows so LoadBundle can dispense them
// individually; a fresh publish replaces bundle and pool wholesale.
func (s *Store) SaveBundle(ctx context.Context, b domain.KeyBundle) error {
	pool := b.OneTimePreKeys
	b.OneTimePreKeys = nil
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bundles (user_id, device_id, bundle, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET device_id = EXCLUDED.device_id, bundle = EXCLUDED.bundle, updated_at = now()`,
		b.UserID.String(), b.DeviceID.String(), raw)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bundle_prekeys WHERE user_id = $1`, b.UserID.String()); err != nil {
		return err
	}
	for _, k := range pool {
		kr, err := json.Marshal(k)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bundle_prekeys (prekey_id, user_id, prekey) VALUES ($1, $2, $3)`,
			k.ID.String(), b.UserID.String(), kr); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadBundle fetches a user's bundle with at most one one-time pre-key,
// removed from the pool as it is handed out. Once the pool is empty the
// bundle is served without one and initiators fall back to the
// three-DH handshake. ok is false when the user has never published.
func (s *Store) LoadBundle(ctx context.Context, user domain.UserID) (domain.KeyBundle, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT bundle FROM bundles WHERE user_id = $1`, user.String()).Scan(&raw)
	if err == sql.ErrNoRows {
		return domain.KeyBundle{}, false, nil
	}
	if err != nil {
		return domain.KeyBundle{}, false, err
	}
	var b domain.KeyBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return domain.KeyBundle{}, false, err
	}
	opk, ok, err := s.dispensePreKey(ctx, user)
	if err != nil {
		return domain.KeyBundle{}, false, err
	}
	if ok {
		b.OneTimePreKeys = []domain.OneTimePreKeyPublic{opk}
	}
	return b, true, nil
}

// dispensePreKey removes one pre-key from user's pool and returns it.
// Concurrent fetchers skip each other's locked row, so no key is ever
// handed out twice.
func (s *Store) dispensePreKey(
	ctx context.Context,
	user domain.UserID,
) (domain.OneTimePreKeyPublic, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM bundle_prekeys
		 WHERE prekey_id = (
			SELECT prekey_id FROM bundle_prekeys
			WHERE user_id = $1
			ORDER BY prekey_id
			LIMIT 1
			FOR UPDATE SKIP LOCKED)
		 RETURNING prekey`, user.String()).Scan(&raw)
	if err == sql.ErrNoRows {
		return domain.OneTimePreKeyPublic{}, false, nil
	}
	if err != nil {
		return domain.OneTimePreKeyPublic{}, false, err
	}
	var k domain.OneTimePreKeyPublic
	if err := json.Unmarshal(raw, &k); err != nil {
		return domain.OneTimePreKeyPublic{}, false, err
	}
	return k, true, nil
}

// SaveMessage stores one envelope idempotently on its client-generated
// message id: a retry of the same message id returns the envelope
// confirmed by the first attempt, never a second row.
func (s *Store) SaveMessage(ctx context.Context, req domain.SendRequest) (domain.Envelope, error) {
	var metaRaw []byte
	if req.AttachmentMeta != nil {
		var err error
		metaRaw, err = json.Marshal(req.AttachmentMeta)
		if err != nil {
			return domain.Envelope{}, err
		}
	}

	id := uuid.NewString()
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages
			(id, message_id, conversation_id, sender_user_id, sender_device_id,
			 cipher_text, attachment_url, attachment_meta, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (message_id) DO NOTHING`,
		id, req.MessageID.String(), req.ConversationID.String(),
		req.SenderUserID.String(), req.SenderDeviceID.String(),
		req.CipherText, req.AttachmentURL, nullableJSON(metaRaw), now)
	if err != nil {
		return domain.Envelope{}, err
	}

	// Reselect regardless of whether we inserted or hit the conflict, so
	// retries observe the first confirmation.
	return s.messageByID(ctx, req.MessageID)
}

// ListMessages returns a conversation's envelopes in created-at order.
func (s *Store) ListMessages(
	ctx context.Context,
	conversation domain.ConversationID,
) ([]domain.Envelope, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, conversation_id, sender_user_id, sender_device_id,
		        cipher_text, attachment_url, attachment_meta, created_at
		 FROM messages WHERE conversation_id = $1
		 ORDER BY created_at ASC, id ASC`, conversation.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Envelope
	for rows.Next() {
		e, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveAttachment records an uploaded blob's bookkeeping row.
func (s *Store) SaveAttachment(ctx context.Context, id, mime string, size int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attachments (id, mime, size) VALUES ($1, $2, $3)`, id, mime, size)
	return err
}

func (s *Store) messageByID(ctx context.Context, messageID domain.MessageID) (domain.Envelope, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, message_id, conversation_id, sender_user_id, sender_device_id,
		        cipher_text, attachment_url, attachment_meta, created_at
		 FROM messages WHERE message_id = $1`, messageID.String())
	return scanEnvelope(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnvelope(r rowScanner) (domain.Envelope, error) {
	var (
		e       domain.Envelope
		metaRaw []byte
	)
	err := r.Scan(&e.ID, &e.MessageID, &e.ConversationID, &e.SenderUserID,
		&e.SenderDeviceID, &e.CipherText, &e.AttachmentURL, &metaRaw, &e.CreatedAt)
	if err != nil {
		return domain.Envelope{}, err
	}
	if len(metaRaw) > 0 {
		var meta domain.AttachmentMeta
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			return domain.Envelope{}, err
		}
		e.AttachmentMeta = &meta
	}
	return e, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
