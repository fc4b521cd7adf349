package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"shopstream/internal/domain"
)

// Conversation cap: appends beyond maxMessages trim the oldest entries down
// to trimTarget, so trimming happens in batches instead of on every write.
const (
	maxMessages = 20
	trimTarget  = 15
)

// SQLiteStore implements domain.ConversationStore on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs the
// schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			handler    TEXT NOT NULL,
			id         TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv
			ON messages (session_id, handler, seq)`,
		`CREATE TABLE IF NOT EXISTS shared_context (
			session_id TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStore, op, err)
}

// LoadHistory implements domain.ConversationStore.
func (s *SQLiteStore) LoadHistory(ctx context.Context, sessionID string, handler domain.HandlerKind, limit int) ([]domain.StoredMessage, error) {
	if limit <= 0 {
		limit = maxMessages
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, metadata, created_at
		FROM messages
		WHERE session_id = ? AND handler = ?
		ORDER BY seq DESC
		LIMIT ?`,
		sessionID, string(handler), limit,
	)
	if err != nil {
		return nil, storeErr("load history", err)
	}
	defer rows.Close()

	var msgs []domain.StoredMessage
	for rows.Next() {
		var (
			msg      domain.StoredMessage
			metaJSON string
			created  string
		)
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &metaJSON, &created); err != nil {
			return nil, storeErr("scan message", err)
		}
		if metaJSON != "" && metaJSON != "{}" {
			json.Unmarshal([]byte(metaJSON), &msg.Metadata)
		}
		msg.Timestamp, _ = time.Parse(time.RFC3339Nano, created)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load history", err)
	}

	// Query returned newest first; callers want oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// AppendMessage implements domain.ConversationStore.
func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, handler domain.HandlerKind, msg domain.StoredMessage) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	metaJSON := "{}"
	if len(msg.Metadata) > 0 {
		if data, err := json.Marshal(msg.Metadata); err == nil {
			metaJSON = string(data)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin append", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, handler, id, role, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, string(handler), msg.ID, msg.Role, msg.Content, metaJSON,
		msg.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return storeErr("append message", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE session_id = ? AND handler = ?",
		sessionID, string(handler),
	).Scan(&count); err != nil {
		return storeErr("count messages", err)
	}

	if count > maxMessages {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM messages
			WHERE session_id = ? AND handler = ? AND seq NOT IN (
				SELECT seq FROM messages
				WHERE session_id = ? AND handler = ?
				ORDER BY seq DESC
				LIMIT ?
			)`,
			sessionID, string(handler), sessionID, string(handler), trimTarget,
		)
		if err != nil {
			return storeErr("trim conversation", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit append", err)
	}
	return nil
}

// SharedContext implements domain.ConversationStore.
func (s *SQLiteStore) SharedContext(ctx context.Context, sessionID string) (*domain.SharedContext, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM shared_context WHERE session_id = ?", sessionID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return &domain.SharedContext{}, nil
	}
	if err != nil {
		return nil, storeErr("load shared context", err)
	}

	sc := &domain.SharedContext{}
	if err := json.Unmarshal([]byte(data), sc); err != nil {
		return nil, storeErr("decode shared context", err)
	}
	return sc, nil
}

// MergeSharedContext implements domain.ConversationStore.
func (s *SQLiteStore) MergeSharedContext(ctx context.Context, sessionID string, update domain.SharedContextUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin merge", err)
	}
	defer tx.Rollback()

	sc := &domain.SharedContext{}
	var data string
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM shared_context WHERE session_id = ?", sessionID,
	).Scan(&data)
	switch {
	case err == sql.ErrNoRows:
		// first write for this session
	case err != nil:
		return storeErr("load shared context", err)
	default:
		if err := json.Unmarshal([]byte(data), sc); err != nil {
			return storeErr("decode shared context", err)
		}
	}

	mergeContext(sc, update)

	merged, err := json.Marshal(sc)
	if err != nil {
		return storeErr("encode shared context", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO shared_context (session_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		sessionID, string(merged), sc.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return storeErr("save shared context", err)
	}
	return tx.Commit()
}

// TouchSession implements domain.ConversationStore.
func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			user_id = excluded.user_id,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		sessionID, userID,
		now.Add(ttl).Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return storeErr("touch session", err)
	}
	return nil
}

// SweepExpired implements domain.ConversationStore. Expired sessions are
// removed together with their conversations and shared context.
func (s *SQLiteStore) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr("begin sweep", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT session_id FROM sessions WHERE expires_at < ?", now,
	)
	if err != nil {
		return 0, storeErr("find expired sessions", err)
	}
	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, storeErr("scan session", err)
		}
		expired = append(expired, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, storeErr("find expired sessions", err)
	}

	for _, id := range expired {
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", id); err != nil {
			return 0, storeErr("delete conversations", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM shared_context WHERE session_id = ?", id); err != nil {
			return 0, storeErr("delete shared context", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", id); err != nil {
			return 0, storeErr("delete session", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr("commit sweep", err)
	}
	return len(expired), nil
}

var _ domain.ConversationStore = (*SQLiteStore)(nil)

// mergeContext applies a partial update in place. Products and orders are
// appended with newest-last semantics, deduplicated by ID; an update for an
// already-seen ID moves it to the end so recency caps keep the right items.
func mergeContext(sc *domain.SharedContext, update domain.SharedContextUpdate) {
	for _, p := range update.Products {
		sc.Products = append(removeProduct(sc.Products, p.ID), p)
	}
	for _, o := range update.Orders {
		sc.Orders = append(removeOrder(sc.Orders, o.OrderID), o)
	}
	if update.SearchQuery != "" {
		sc.SearchHistory = append(sc.SearchHistory, update.SearchQuery)
	}
	if len(update.Preferences) > 0 {
		sc.Preferences = update.Preferences
	}
	sc.UpdatedAt = time.Now().UTC()
}

func removeProduct(products []domain.Product, id string) []domain.Product {
	for i, p := range products {
		if p.ID == id {
			return append(products[:i], products[i+1:]...)
		}
	}
	return products
}

func removeOrder(orders []domain.OrderSummary, id string) []domain.OrderSummary {
	for i, o := range orders {
		if o.OrderID == id {
			return append(orders[:i], orders[i+1:]...)
		}
	}
	return orders
}
