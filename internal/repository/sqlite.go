package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"legend-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLiteStore keeps the same three documents as rows of the documents table. Every Update
// runs in one transaction, so the players, seasonal and previous documents always commit
// together.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

func NewSQLiteStore(db *sql.DB, logger zerolog.Logger) *SQLiteStore {
	logger.Info().Msg("using sqlite store")
	return &SQLiteStore{db: db, logger: logger}
}

func (s *SQLiteStore) Load(ctx context.Context) (*domain.State, error) {
	return load(ctx, &sqlBackend{q: s.db})
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(st *domain.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	if err := update(ctx, &sqlBackend{q: tx}, s.logger, fn); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("failed to commit state")
		return fmt.Errorf("%w: failed to commit: %w", domain.ErrPersistence, err)
	}
	return nil
}

type sqlBackend struct {
	q querier
}

func (b *sqlBackend) read(ctx context.Context) (map[document][]byte, error) {
	rows, err := b.q.QueryContext(ctx, `SELECT name, body FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query documents: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	out := make(map[document][]byte, len(documents))
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("%w: failed to scan document: %w", domain.ErrPersistence, err)
		}
		out[document(name)] = []byte(body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return out, nil
}

func (b *sqlBackend) write(ctx context.Context, _, docs map[document][]byte, which []document) error {
	now := time.Now().UTC()
	for _, doc := range which {
		_, err := b.q.ExecContext(ctx, `
			INSERT INTO documents (name, body, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				body = excluded.body,
				updated_at = excluded.updated_at
		`, string(doc), string(docs[doc]), now)
		if err != nil {
			return fmt.Errorf("failed to upsert %s: %w", doc, err)
		}
	}
	return nil
}
