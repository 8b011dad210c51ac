package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLiteStore hands 表；常用列单独存放便于查询，完整记录放在 payload
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore 打开（必要时创建）数据库并建表
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "mkdir db dir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1) // SQLite：单连接
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS hands (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  hand_number INTEGER NOT NULL,
  hand_index INTEGER NOT NULL,
  true_count REAL NOT NULL,
  recommended TEXT NOT NULL,
  outcome TEXT NOT NULL DEFAULT '',
  payout TEXT NOT NULL DEFAULT '0',
  decided_at TEXT NOT NULL,
  payload TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_hands_session ON hands(session_id, hand_number);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec HandRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal hand")
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO hands (id,session_id,hand_number,hand_index,true_count,recommended,outcome,payout,decided_at,payload)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  outcome=excluded.outcome,
  payout=excluded.payout,
  payload=excluded.payload
`, rec.ID, rec.SessionID, rec.HandNumber, rec.HandIndex, rec.TrueCount, rec.Recommendation(),
		string(rec.Outcome), rec.Payout.String(), rec.DecidedAt.Format(time.RFC3339Nano), string(payload))
	return errors.Wrapf(err, "upsert hand #%d", rec.HandNumber)
}

func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]HandRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT payload FROM hands WHERE session_id=? ORDER BY hand_number, hand_index
`, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "query hands")
	}
	defer rows.Close()

	var out []HandRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec HandRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, errors.Wrap(err, "decode hand")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Sessions 已记录的会话 id
func (s *SQLiteStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM hands ORDER BY session_id`)
	if err != nil {
		return nil, errors.Wrap(err, "query sessions")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
