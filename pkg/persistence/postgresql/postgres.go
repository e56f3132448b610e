// Package postgresql provides a PostgreSQL document store.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/socialflow/pkg/persistence"
	"github.com/dukex/socialflow/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Store keeps documents as JSONB rows keyed by (collection, id).
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore connects, pings and migrates the database.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: database, logger: logger}, nil
}

// NewPersistence creates the document repositories on a PostgreSQL store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*persistence.Documents, error) {
	store, err := NewStore(ctx, logger, databaseURL)
	if err != nil {
		return nil, err
	}

	return persistence.NewDocuments(store), nil
}

func (s *Store) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var body []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDocumentNotFound
		}

		return nil, &persistence.DocumentError{Op: "Get", Collection: collection, ID: id, Err: err}
	}

	return body, nil
}

func (s *Store) Put(ctx context.Context, collection, id string, document []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, id, document,
	)
	if err != nil {
		return &persistence.DocumentError{Op: "Put", Collection: collection, ID: id, Err: err}
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return &persistence.DocumentError{Op: "Delete", Collection: collection, ID: id, Err: err}
	}

	return nil
}

// List returns the collection's documents ordered by id.
func (s *Store) List(ctx context.Context, collection string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM documents WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return nil, &persistence.DocumentError{Op: "List", Collection: collection, Err: err}
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error("Failed to close rows", "error", closeErr)
		}
	}()

	documents := make([][]byte, 0)

	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, &persistence.DocumentError{Op: "List", Collection: collection, Err: err}
		}

		documents = append(documents, body)
	}

	if err := rows.Err(); err != nil {
		return nil, &persistence.DocumentError{Op: "List", Collection: collection, Err: err}
	}

	return documents, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
