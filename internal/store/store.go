package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"chatd/internal/session"
	"chatd/internal/state"
	"chatd/pkg/types"
)

// ErrNotFound is returned when a conversation has never been saved.
var ErrNotFound = errors.New("conversation not found")

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Store reads and writes session checkpoints.
type Store struct {
	db          *sql.DB
	log         zerolog.Logger
	compression state.Compression
}

// Option customizes Open.
type Option func(*Store)

func WithLogger(l zerolog.Logger) Option { return func(s *Store) { s.log = l } }

// WithCompression selects how snapshot blobs are packed. Defaults to zstd.
func WithCompression(c state.Compression) Option { return func(s *Store) { s.compression = c } }

// Open opens the database at path and applies pending migrations.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db, log: zerolog.Nop(), compression: state.CompressionZstd}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveCheckpoint replaces everything stored for conversation id with cp.
func (s *Store) SaveCheckpoint(ctx context.Context, id, modelID string, cp session.Checkpoint) error {
	var blob []byte
	if cp.Snapshot != nil {
		b, err := state.Marshal(cp.Snapshot, s.compression)
		if err != nil {
			return fmt.Errorf("store: save %s: %w", id, err)
		}
		blob = b
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: save %s: begin: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, model_id) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET model_id = excluded.model_id, updated_at = datetime('now')`,
		id, modelID); err != nil {
		return fmt.Errorf("store: save %s: conversation: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("store: save %s: clear turns: %w", id, err)
	}
	for i, t := range cp.History {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (conversation_id, seq, id, role, content) VALUES (?, ?, ?, ?, ?)`,
			id, i, t.ID, string(t.Role), t.Content); err != nil {
			return fmt.Errorf("store: save %s: turn %d: %w", id, i, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("store: save %s: clear snapshot: %w", id, err)
	}
	if blob != nil {
		snap := cp.Snapshot
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (conversation_id, fingerprint, token_count, size, envelope) VALUES (?, ?, ?, ?, ?)`,
			id, snap.Fingerprint, snap.TokenCount, snap.Size, blob); err != nil {
			return fmt.Errorf("store: save %s: snapshot: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: save %s: commit: %w", id, err)
	}
	s.log.Debug().Str("conversation", id).Int("turns", len(cp.History)).Int("snapshot_bytes", len(blob)).Msg("checkpoint saved")
	return nil
}

// LoadCheckpoint returns the stored conversation. A snapshot blob that can no
// longer be decoded is discarded and only the history is returned.
func (s *Store) LoadCheckpoint(ctx context.Context, id string) (session.Checkpoint, error) {
	var cp session.Checkpoint
	var modelID string
	err := s.db.QueryRowContext(ctx, `SELECT model_id FROM conversations WHERE id = ?`, id).Scan(&modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return cp, fmt.Errorf("store: load %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return cp, fmt.Errorf("store: load %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content FROM turns WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return cp, fmt.Errorf("store: load %s: turns: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var t types.Turn
		var role string
		if err := rows.Scan(&t.ID, &role, &t.Content); err != nil {
			return cp, fmt.Errorf("store: load %s: scan turn: %w", id, err)
		}
		t.Role = types.Role(role)
		cp.History = append(cp.History, t)
	}
	if err := rows.Err(); err != nil {
		return cp, fmt.Errorf("store: load %s: turns: %w", id, err)
	}

	var blob []byte
	err = s.db.QueryRowContext(ctx, `SELECT envelope FROM snapshots WHERE conversation_id = ?`, id).Scan(&blob)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return cp, nil
	case err != nil:
		return cp, fmt.Errorf("store: load %s: snapshot: %w", id, err)
	}
	snap, err := state.Unmarshal(blob)
	if err != nil {
		s.log.Warn().Err(err).Str("conversation", id).Msg("discarding unreadable snapshot")
		return cp, nil
	}
	cp.Snapshot = snap
	return cp, nil
}

// DeleteConversation removes a conversation with its turns and snapshot. It
// is not an error to delete one that does not exist.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return nil
}

// Conversation summarizes one stored conversation.
type Conversation struct {
	ID          string
	ModelID     string
	Turns       int
	HasSnapshot bool
	UpdatedAt   string
}

// ListConversations returns stored conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.model_id, c.updated_at,
		       (SELECT COUNT(*) FROM turns t WHERE t.conversation_id = c.id),
		       EXISTS (SELECT 1 FROM snapshots s WHERE s.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.updated_at DESC, c.id`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()
	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.ModelID, &c.UpdatedAt, &c.Turns, &c.HasSnapshot); err != nil {
			return nil, fmt.Errorf("store: list: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
