// Package postgres implements store.RunStore on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallnest/agentgraph/research"
	"github.com/smallnest/agentgraph/store"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// RunStore implements store.RunStore using PostgreSQL.
type RunStore struct {
	pool      DBPool
	tableName string
}

var _ store.RunStore = (*RunStore)(nil)

// Options configuration for Postgres connection
type Options struct {
	ConnString string
	TableName  string // Default "research_runs"
}

// NewRunStore creates a new Postgres run store.
func NewRunStore(ctx context.Context, opts Options) (*RunStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "research_runs"
	}

	return &RunStore{
		pool:      pool,
		tableName: tableName,
	}, nil
}

// NewRunStoreWithPool creates a new Postgres run store with an existing pool.
// Useful for testing with mocks.
func NewRunStoreWithPool(pool DBPool, tableName string) *RunStore {
	if tableName == "" {
		tableName = "research_runs"
	}
	return &RunStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *RunStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			final_answer TEXT NOT NULL,
			iteration_responses JSONB,
			cited_documents JSONB,
			log_messages JSONB,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *RunStore) Close() {
	s.pool.Close()
}

// SaveResult stores a run result.
func (s *RunStore) SaveResult(ctx context.Context, result *research.RunResult) error {
	responsesJSON, err := json.Marshal(result.IterationResponses)
	if err != nil {
		return fmt.Errorf("failed to marshal iteration responses: %w", err)
	}
	documentsJSON, err := json.Marshal(result.CitedDocuments)
	if err != nil {
		return fmt.Errorf("failed to marshal cited documents: %w", err)
	}
	logsJSON, err := json.Marshal(result.LogMessages)
	if err != nil {
		return fmt.Errorf("failed to marshal log messages: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, question, final_answer, iteration_responses, cited_documents, log_messages, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			question = EXCLUDED.question,
			final_answer = EXCLUDED.final_answer,
			iteration_responses = EXCLUDED.iteration_responses,
			cited_documents = EXCLUDED.cited_documents,
			log_messages = EXCLUDED.log_messages,
			created_at = EXCLUDED.created_at
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		result.RunID,
		result.Question,
		result.FinalAnswer,
		responsesJSON,
		documentsJSON,
		logsJSON,
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load retrieves a run by ID.
func (s *RunStore) Load(ctx context.Context, runID string) (*research.RunResult, error) {
	query := fmt.Sprintf(`
		SELECT run_id, question, final_answer, iteration_responses, cited_documents, log_messages, created_at
		FROM %s
		WHERE run_id = $1
	`, s.tableName)

	result, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return result, nil
}

// List returns runs ordered most recent first.
func (s *RunStore) List(ctx context.Context, limit int) ([]*research.RunResult, error) {
	query := fmt.Sprintf(`
		SELECT run_id, question, final_answer, iteration_responses, cited_documents, log_messages, created_at
		FROM %s
		ORDER BY created_at DESC
	`, s.tableName)
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []*research.RunResult
	for rows.Next() {
		result, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run rows: %w", err)
	}
	return results, nil
}

// Delete removes a run.
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE run_id = $1`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

func scanRun(row pgx.Row) (*research.RunResult, error) {
	var result research.RunResult
	var responsesJSON, documentsJSON, logsJSON []byte

	err := row.Scan(
		&result.RunID,
		&result.Question,
		&result.FinalAnswer,
		&responsesJSON,
		&documentsJSON,
		&logsJSON,
		&result.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(responsesJSON) > 0 {
		if err := json.Unmarshal(responsesJSON, &result.IterationResponses); err != nil {
			return nil, fmt.Errorf("failed to unmarshal iteration responses: %w", err)
		}
	}
	if len(documentsJSON) > 0 {
		if err := json.Unmarshal(documentsJSON, &result.CitedDocuments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cited documents: %w", err)
		}
	}
	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &result.LogMessages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log messages: %w", err)
		}
	}
	return &result, nil
}
