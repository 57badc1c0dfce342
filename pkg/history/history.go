// Package history persists client conversations in a local SQLite
// database, keyed by model identifier.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rotaworks/rotachat/pkg/chat"
	"github.com/rotaworks/rotachat/pkg/llm"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id               TEXT PRIMARY KEY,
	model_identifier TEXT NOT NULL,
	role             TEXT NOT NULL,
	content          TEXT NOT NULL DEFAULT '',
	attachments      TEXT NOT NULL DEFAULT '[]',
	state            TEXT NOT NULL,
	fail_reason      TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_model ON messages (model_identifier, created_at);
`

// Store implements chat.Store on a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the history database at path.
// Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, modelIdentifier string) ([]chat.Message, error) {
	query, args, err := sq.Select("id", "role", "content", "attachments", "state", "fail_reason", "created_at").
		From("messages").
		Where(sq.Eq{"model_identifier": modelIdentifier}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var (
			m           chat.Message
			attachments string
			createdAt   time.Time
		)
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &attachments, &m.State, &m.FailReason, &createdAt); err != nil {
			return nil, err
		}
		if attachments != "" && attachments != "[]" {
			var list []llm.Attachment
			if err := json.Unmarshal([]byte(attachments), &list); err != nil {
				return nil, fmt.Errorf("decoding attachments for %s: %w", m.ID, err)
			}
			m.Attachments = list
		}
		m.CreatedAt = createdAt
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) Append(ctx context.Context, modelIdentifier string, msg chat.Message) error {
	attachments := "[]"
	if len(msg.Attachments) > 0 {
		raw, err := json.Marshal(msg.Attachments)
		if err != nil {
			return fmt.Errorf("encoding attachments: %w", err)
		}
		attachments = string(raw)
	}

	query, args, err := sq.Insert("messages").
		Columns("id", "model_identifier", "role", "content", "attachments", "state", "fail_reason", "created_at").
		Values(msg.ID, modelIdentifier, msg.Role, msg.Content, attachments, string(msg.State), msg.FailReason, msg.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, modelIdentifier, messageID string) error {
	query, args, err := sq.Delete("messages").
		Where(sq.Eq{"model_identifier": modelIdentifier, "id": messageID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) Clear(ctx context.Context, modelIdentifier string) error {
	query, args, err := sq.Delete("messages").
		Where(sq.Eq{"model_identifier": modelIdentifier}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM messages")
	return err
}
