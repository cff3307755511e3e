// Package sqlite implements store.RunStore on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smallnest/agentgraph/research"
	"github.com/smallnest/agentgraph/store"
)

// RunStore implements store.RunStore using SQLite.
type RunStore struct {
	db        *sql.DB
	tableName string
}

var _ store.RunStore = (*RunStore)(nil)

// Options configuration for SQLite connection
type Options struct {
	Path      string
	TableName string // Default "research_runs"
}

// NewRunStore creates a new SQLite run store and initializes its schema.
func NewRunStore(opts Options) (*RunStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "research_runs"
	}

	s := &RunStore{
		db:        db,
		tableName: tableName,
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *RunStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			final_answer TEXT NOT NULL,
			iteration_responses TEXT,
			cited_documents TEXT,
			log_messages TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at);
	`, s.tableName, s.tableName, s.tableName)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *RunStore) Close() error {
	return s.db.Close()
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
		INSERT OR REPLACE INTO %s (run_id, question, final_answer, iteration_responses, cited_documents, log_messages, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		result.RunID,
		result.Question,
		result.FinalAnswer,
		string(responsesJSON),
		string(documentsJSON),
		string(logsJSON),
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
		WHERE run_id = ?
	`, s.tableName)

	result, err := scanRun(s.db.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	query := fmt.Sprintf(`DELETE FROM %s WHERE run_id = ?`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*research.RunResult, error) {
	var result research.RunResult
	var responsesJSON, documentsJSON, logsJSON string

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

	if responsesJSON != "" {
		if err := json.Unmarshal([]byte(responsesJSON), &result.IterationResponses); err != nil {
			return nil, fmt.Errorf("failed to unmarshal iteration responses: %w", err)
		}
	}
	if documentsJSON != "" {
		if err := json.Unmarshal([]byte(documentsJSON), &result.CitedDocuments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cited documents: %w", err)
		}
	}
	if logsJSON != "" {
		if err := json.Unmarshal([]byte(logsJSON), &result.LogMessages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log messages: %w", err)
		}
	}
	return &result, nil
}
