package survey

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL. The section/question
// structure is stored as a jsonb definition column; the engine always loads a
// survey whole, so there is nothing to gain from normalizing it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed survey store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts a new survey.
func (s *PostgresStore) Add(sv *Survey) error {
	definition, err := json.Marshal(sv.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal survey definition: %w", err)
	}

	now := time.Now()
	sv.CreatedAt = now
	sv.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO surveys (id, title, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sv.ID, sv.Title, definition, sv.CreatedAt, sv.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert survey: %w", err)
	}

	return nil
}

// Get retrieves a survey by ID.
func (s *PostgresStore) Get(id string) (*Survey, error) {
	var sv Survey
	var definition []byte

	err := s.db.QueryRow(`
		SELECT id, title, definition, created_at, updated_at
		FROM surveys
		WHERE id = $1
	`, id).Scan(&sv.ID, &sv.Title, &definition, &sv.CreatedAt, &sv.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("survey %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get survey: %w", err)
	}

	if err := json.Unmarshal(definition, &sv.Sections); err != nil {
		return nil, fmt.Errorf("invalid definition for survey %s: %w", id, err)
	}

	return &sv, nil
}

// List returns all surveys.
func (s *PostgresStore) List() ([]*Survey, error) {
	rows, err := s.db.Query(`
		SELECT id, title, definition, created_at, updated_at
		FROM surveys
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}
	defer rows.Close()

	var out []*Survey
	for rows.Next() {
		var sv Survey
		var definition []byte
		if err := rows.Scan(&sv.ID, &sv.Title, &definition, &sv.CreatedAt, &sv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan survey: %w", err)
		}
		if err := json.Unmarshal(definition, &sv.Sections); err != nil {
			return nil, fmt.Errorf("invalid definition for survey %s: %w", sv.ID, err)
		}
		out = append(out, &sv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating surveys: %w", err)
	}

	return out, nil
}

// Update replaces a survey's title and definition.
func (s *PostgresStore) Update(sv *Survey) error {
	definition, err := json.Marshal(sv.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal survey definition: %w", err)
	}

	sv.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE surveys
		SET title = $1, definition = $2, updated_at = $3
		WHERE id = $4
	`, sv.Title, definition, sv.UpdatedAt, sv.ID)

	if err != nil {
		return fmt.Errorf("failed to update survey: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("survey %s not found", sv.ID)
	}

	return nil
}

// Delete removes a survey and, via foreign keys, its rules and groups.
func (s *PostgresStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM surveys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete survey: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("survey %s not found", id)
	}

	return nil
}
