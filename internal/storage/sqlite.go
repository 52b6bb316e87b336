package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ordering_assistant/pkg"

	"github.com/cloudwego/eino/schema"
	_ "modernc.org/sqlite"
)

// SQLiteTurnLog stores session logs in a single SQLite table
type SQLiteTurnLog struct {
	db *sql.DB
}

// NewSQLiteTurnLog opens (or creates) the database at dbPath
func NewSQLiteTurnLog(ctx context.Context, dbPath string) (*SQLiteTurnLog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// a single writer avoids SQLITE_BUSY between concurrent sessions
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log := &SQLiteTurnLog{db: db}
	if err := log.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return log, nil
}

func (s *SQLiteTurnLog) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS turns (
		session_key TEXT NOT NULL,
		seq INTEGER NOT NULL,
		position INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_key, seq, position)
	);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Append inserts the turns of one sequence number in a transaction
func (s *SQLiteTurnLog) Append(ctx context.Context, key string, seq uint64, turns ...pkg.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO turns (session_key, seq, position, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for i, t := range turns {
		if _, err := stmt.ExecContext(ctx, key, int64(seq), i, string(t.Role), t.Content, t.Timestamp.UnixNano()); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Load returns the session log ordered by sequence number
func (s *SQLiteTurnLog) Load(ctx context.Context, key string) ([]pkg.LoggedTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, role, content, created_at FROM turns
		WHERE session_key = ?
		ORDER BY seq, position`, key)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	entries := []pkg.LoggedTurn{}
	for rows.Next() {
		var (
			seq       int64
			role      string
			content   string
			createdAt int64
		)
		if err := rows.Scan(&seq, &role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		entries = append(entries, pkg.LoggedTurn{
			Sequence: uint64(seq),
			Turn: pkg.Turn{
				Role:      schema.RoleType(role),
				Content:   content,
				Timestamp: time.Unix(0, createdAt),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return entries, nil
}

// Delete removes every turn of the session
func (s *SQLiteTurnLog) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteTurnLog) Close() error {
	return s.db.Close()
}
