package survey

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store backed by SQLite, for embedded and development
// deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed survey store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// InitSQLiteSchema creates the surveys table if it does not exist.
func InitSQLiteSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS surveys (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			definition TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return nil
}

// Add inserts a new survey.
func (s *SQLiteStore) Add(sv *Survey) error {
	definition, err := json.Marshal(sv.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal survey definition: %w", err)
	}

	now := time.Now()
	sv.CreatedAt = now
	sv.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO surveys (id, title, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, sv.ID, sv.Title, definition, sv.CreatedAt, sv.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert survey: %w", err)
	}

	return nil
}

// Get retrieves a survey by ID.
func (s *SQLiteStore) Get(id string) (*Survey, error) {
	var sv Survey
	var definition []byte

	err := s.db.QueryRow(`
		SELECT id, title, definition, created_at, updated_at
		FROM surveys
		WHERE id = ?
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
func (s *SQLiteStore) List() ([]*Survey, error) {
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
func (s *SQLiteStore) Update(sv *Survey) error {
	definition, err := json.Marshal(sv.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal survey definition: %w", err)
	}

	sv.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE surveys
		SET title = ?, definition = ?, updated_at = ?
		WHERE id = ?
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

// Delete removes a survey.
func (s *SQLiteStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM surveys WHERE id = ?`, id)
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
