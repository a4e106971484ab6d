// Package postgres implements the store contract on PostgreSQL. The full
// processed event is kept as a JSONB document beside the indexed columns, so
// reads return records identical to what was written.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/veritymap/event-intel/internal/domain"
	"github.com/veritymap/event-intel/internal/store"
)

// Store persists processed events in a single processed_events table.
type Store struct {
	db *sql.DB
}

// Open connects to the database at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS processed_events (
			event_id TEXT PRIMARY KEY,
			region   TEXT NOT NULL DEFAULT '',
			ts       TIMESTAMPTZ NOT NULL,
			record   JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS processed_events_region_ts
			ON processed_events (region, ts DESC)`,
		`CREATE INDEX IF NOT EXISTS processed_events_ts
			ON processed_events (ts DESC)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}
	return nil
}

// Put inserts ev unless its id is already present. ON CONFLICT DO NOTHING
// keeps the first stored record authoritative under concurrent duplicates.
func (s *Store) Put(ctx context.Context, ev domain.ProcessedEvent) error {
	record, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", ev.EventID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, region, ts, record)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.EventID, ev.Region, ev.Timestamp, record)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", ev.EventID, err)
	}
	return nil
}

// GetByID returns the stored record, or domain.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (domain.ProcessedEvent, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM processed_events WHERE event_id = $1`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProcessedEvent{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ProcessedEvent{}, fmt.Errorf("failed to read event %s: %w", id, err)
	}
	return decodeEvent(record)
}

// Query returns matching events newest-first.
func (s *Store) Query(ctx context.Context, q store.Query) ([]domain.ProcessedEvent, error) {
	query, args := buildSelect(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []domain.ProcessedEvent
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev, err := decodeEvent(record)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}
	return out, nil
}

// ScanForAggregation streams matching events to fn without buffering the
// whole result set.
func (s *Store) ScanForAggregation(ctx context.Context, region string, from, to time.Time, fn func(domain.ProcessedEvent) error) error {
	query, args := buildSelect(store.Query{Region: region, From: from, To: to})

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return fmt.Errorf("failed to scan event row: %w", err)
		}
		ev, err := decodeEvent(record)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate event rows: %w", err)
	}
	return nil
}

// buildSelect assembles the filtered SELECT. Placeholders are numbered in
// argument order; the time range is half-open [From, To).
func buildSelect(q store.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.Region != "" {
		args = append(args, q.Region)
		conds = append(conds, fmt.Sprintf("region = $%d", len(args)))
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		conds = append(conds, fmt.Sprintf("ts >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		conds = append(conds, fmt.Sprintf("ts < $%d", len(args)))
	}

	query := `SELECT record FROM processed_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts DESC, event_id ASC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

func decodeEvent(record []byte) (domain.ProcessedEvent, error) {
	var ev domain.ProcessedEvent
	if err := json.Unmarshal(record, &ev); err != nil {
		return domain.ProcessedEvent{}, fmt.Errorf("failed to decode stored event: %w", err)
	}
	return ev, nil
}
