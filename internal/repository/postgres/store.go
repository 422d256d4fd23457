// Package postgres keeps conversation sessions and the message log in
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"sr-chatbot/internal/domain"
	"sr-chatbot/internal/infra/ids"
)

const undefinedTable = "42P01"

// Store implements session persistence and the message log on PostgreSQL.
type Store struct {
	db  *sqlx.DB
	ids *ids.Snowflake
	now func() time.Time
}

type stateRow struct {
	Sender    string    `db:"sender"`
	StateData []byte    `db:"state_data"`
	UpdatedAt time.Time `db:"updated_at"`
}

type messageRow struct {
	ID        int64     `db:"id"`
	Sender    string    `db:"sender"`
	Role      string    `db:"role"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}

// Connect opens a pooled connection and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres: dsn must not be empty")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func New(db *sqlx.DB, idgen *ids.Snowflake) (*Store, error) {
	if db == nil {
		return nil, errors.New("postgres: db must not be nil")
	}
	if idgen == nil {
		idgen = ids.NewSnowflake(1)
	}
	return &Store{db: db, ids: idgen, now: time.Now}, nil
}

// EnsureTable creates the session and message tables if they do not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS conversation_states (
  sender TEXT PRIMARY KEY,
  state_data JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS message_log (
  id BIGINT PRIMARY KEY,
  sender TEXT NOT NULL,
  role TEXT NOT NULL,
  text TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_message_log_sender ON message_log(sender, id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: EnsureTable: %w", err)
	}
	return nil
}

func (s *Store) LoadSession(ctx context.Context, sender string) (domain.StateRecord, bool, error) {
	const q = `SELECT sender, state_data, updated_at FROM conversation_states WHERE sender=$1`
	var row stateRow
	if err := s.db.GetContext(ctx, &row, q, sender); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StateRecord{}, false, nil
		}
		return domain.StateRecord{}, false, wrap("LoadSession", err)
	}
	rec, err := decodeState(row)
	if err != nil {
		return domain.StateRecord{}, false, fmt.Errorf("postgres: LoadSession decode: %w", err)
	}
	return rec, true, nil
}

func (s *Store) SaveSession(ctx context.Context, rec domain.StateRecord) error {
	if strings.TrimSpace(rec.Sender) == "" {
		return errors.New("postgres: SaveSession: sender is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("postgres: SaveSession encode: %w", err)
	}
	const q = `INSERT INTO conversation_states (sender, state_data, updated_at)
		VALUES (:sender, :state_data, :updated_at)
		ON CONFLICT (sender) DO UPDATE SET state_data = EXCLUDED.state_data, updated_at = EXCLUDED.updated_at`
	row := stateRow{Sender: rec.Sender, StateData: data, UpdatedAt: s.now().UTC()}
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return wrap("SaveSession", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, sender string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_states WHERE sender=$1`, sender); err != nil {
		return wrap("DeleteSession", err)
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, sender, role, text string) error {
	const q = `INSERT INTO message_log (id, sender, role, text, created_at)
		VALUES (:id, :sender, :role, :text, :created_at)`
	row := messageRow{ID: s.ids.Next(), Sender: sender, Role: role, Text: text, CreatedAt: s.now().UTC()}
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		return wrap("AppendMessage", err)
	}
	return nil
}

// GetHistory returns up to limit of the most recent messages for sender in
// chronological order.
func (s *Store) GetHistory(ctx context.Context, sender string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT id, sender, role, text, created_at FROM message_log
		WHERE sender=$1 ORDER BY id DESC LIMIT $2`
	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, q, sender, limit); err != nil {
		return nil, wrap("GetHistory", err)
	}
	out := make([]domain.Message, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = toMessage(r)
	}
	return out, nil
}

func decodeState(row stateRow) (domain.StateRecord, error) {
	var rec domain.StateRecord
	if err := json.Unmarshal(row.StateData, &rec); err != nil {
		return domain.StateRecord{}, err
	}
	if rec.Sender == "" {
		rec.Sender = row.Sender
	}
	return rec, nil
}

func toMessage(r messageRow) domain.Message {
	return domain.Message{
		PK:     r.Sender,
		SK:     fmt.Sprintf("%d", r.ID),
		Sender: r.Sender,
		Role:   r.Role,
		Text:   r.Text,
	}
}

// wrap annotates a missing table so operators know to run EnsureTable.
func wrap(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("postgres: %s: table missing, run EnsureTable: %w", op, err)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
