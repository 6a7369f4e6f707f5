package requestlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vaani-labs/vaani-core/internal/config"
)

// Store keeps the request log in SQLite.
type Store struct {
	db        *sql.DB
	log       *slog.Logger
	retention time.Duration
	clock     func() time.Time
}

// Open initializes the request log database.
func Open(ctx context.Context, cfg config.RequestLogConfig, log *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{
		db:        db,
		log:       log.With(slog.String("component", "request-log")),
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		clock:     time.Now,
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.Prune(ctx); err != nil {
		s.log.Warn("request log prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    status TEXT NOT NULL,
    error_kind TEXT,
    detected_language TEXT,
    emotion TEXT,
    dialect TEXT,
    target_lang TEXT,
    stage_latency_ms BLOB,
    degraded_stages TEXT,
    total_ms INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_session ON requests(session_id);
CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at);
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

// Write appends one record.
func (s *Store) Write(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}
	latencies, err := json.Marshal(rec.StageLatencyMS)
	if err != nil {
		return fmt.Errorf("encode latencies: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO requests(session_id, status, error_kind, detected_language, emotion, dialect, target_lang, stage_latency_ms, degraded_stages, total_ms, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Status, rec.ErrorKind, rec.DetectedLanguage, rec.Emotion, rec.Dialect,
		rec.TargetLang, latencies, strings.Join(rec.DegradedStages, ","), rec.TotalMS, rec.CreatedAt)
	return err
}

// ListRecent returns up to limit records ordered newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, status, error_kind, detected_language, emotion, dialect, target_lang, stage_latency_ms, degraded_stages, total_ms, created_at
		 FROM requests ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var latencies []byte
		var degraded string
		var created string
		if err := rows.Scan(&rec.SessionID, &rec.Status, &rec.ErrorKind, &rec.DetectedLanguage,
			&rec.Emotion, &rec.Dialect, &rec.TargetLang, &latencies, &degraded, &rec.TotalMS, &created); err != nil {
			return nil, err
		}
		if len(latencies) > 0 {
			if err := json.Unmarshal(latencies, &rec.StageLatencyMS); err != nil {
				return nil, fmt.Errorf("decode latencies: %w", err)
			}
		}
		if degraded != "" {
			rec.DegradedStages = strings.Split(degraded, ",")
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune applies the configured retention window.
func (s *Store) Prune(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	cutoff := s.clock().Add(-s.retention).UTC()
	_, err := s.db.ExecContext(ctx, `DELETE FROM requests WHERE created_at < ?`, cutoff)
	return err
}
