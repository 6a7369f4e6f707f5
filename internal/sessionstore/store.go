package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vaani-labs/vaani-core/internal/config"
)

// ErrNotFound reports that no artifact exists for a session id.
var ErrNotFound = errors.New("session artifact not found")

// Store persists synthesized output artifacts keyed by session id. Writes
// are append-only under unique ids, so concurrent requests need no
// cross-request synchronization.
type Store struct {
	dir       string
	db        *sql.DB
	log       *slog.Logger
	retention time.Duration
	clock     func() time.Time
}

// Open prepares the artifact directory and the SQLite session index.
func Open(ctx context.Context, cfg config.SessionConfig, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	if dir := filepath.Dir(cfg.IndexPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.IndexPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{
		dir:       cfg.Dir,
		db:        db,
		log:       log.With(slog.String("component", "session-store")),
		retention: time.Duration(cfg.RetentionHours) * time.Hour,
		clock:     time.Now,
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.Prune(ctx); err != nil {
		s.log.Warn("session prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    artifact_path TEXT,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Allocate generates a fresh session identifier. It is called before any
// pipeline stage runs so partial-failure results remain referenceable.
func (s *Store) Allocate() string {
	return uuid.NewString()
}

// Persist writes the WAV artifact under the session id and returns its URI.
func (s *Store) Persist(ctx context.Context, sessionID string, wavBytes []byte) (string, error) {
	path := filepath.Join(s.dir, sessionID+".wav")
	if err := os.WriteFile(path, wavBytes, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, artifact_path, size_bytes, created_at)
		 VALUES(?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET artifact_path=excluded.artifact_path, size_bytes=excluded.size_bytes`,
		sessionID, abs, len(wavBytes), s.clock().UTC())
	if err != nil {
		return "", fmt.Errorf("index artifact: %w", err)
	}
	return "file://" + abs, nil
}

// Retrieve loads the artifact bytes for a session id.
func (s *Store) Retrieve(ctx context.Context, sessionID string) ([]byte, error) {
	var path string
	err := s.db.QueryRowContext(ctx,
		`SELECT artifact_path FROM sessions WHERE session_id = ?`, sessionID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// Prune removes artifacts and index rows older than the retention window.
func (s *Store) Prune(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	cutoff := s.clock().Add(-s.retention).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, artifact_path FROM sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	type stale struct{ id, path string }
	var expired []stale
	for rows.Next() {
		var e stale
		if err := rows.Scan(&e.id, &e.path); err != nil {
			return err
		}
		expired = append(expired, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, e := range expired {
		if e.path != "" {
			if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
				s.log.Warn("failed to remove expired artifact",
					slog.String("session_id", e.id), slog.String("error", err.Error()))
			}
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, e.id); err != nil {
			return err
		}
	}
	return nil
}
