package flow

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRuleStore implements RuleStore backed by SQLite, for embedded and
// development deployments. Schema and JSON payloads match the Postgres store;
// only the placeholder syntax and timestamp handling differ.
type SQLiteRuleStore struct {
	db *sql.DB
}

// NewSQLiteRuleStore creates a SQLite-backed RuleStore.
func NewSQLiteRuleStore(db *sql.DB) *SQLiteRuleStore {
	return &SQLiteRuleStore{db: db}
}

// InitSQLiteSchema creates the rule tables if they do not exist. SQLite
// deployments have no migration runner, so the store bootstraps itself.
func InitSQLiteSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rules (
			id TEXT PRIMARY KEY,
			survey_id TEXT NOT NULL,
			source_question_id TEXT,
			ord INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			condition TEXT,
			condition_group_id TEXT,
			action TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_rules_survey ON rules(survey_id);

		CREATE TABLE IF NOT EXISTS rule_groups (
			id TEXT PRIMARY KEY,
			survey_id TEXT NOT NULL,
			operator TEXT NOT NULL,
			children TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_rule_groups_survey ON rule_groups(survey_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return nil
}

// Add inserts a new rule.
func (s *SQLiteRuleStore) Add(rule *Rule) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM rules WHERE id = ? AND survey_id = ?)
	`, rule.ID, rule.SurveyID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}

	condJSON, actionJSON, err := marshalPayloads(rule)
	if err != nil {
		return err
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO rules (id, survey_id, source_question_id, ord, is_active,
			condition, condition_group_id, action, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.SurveyID, nullable(rule.SourceQuestionID), rule.Order, rule.IsActive,
		nullableBytes(condJSON), nullable(rule.GroupID), actionJSON, rule.CreatedAt, rule.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	return nil
}

// Get retrieves a rule by ID.
func (s *SQLiteRuleStore) Get(surveyID, id string) (*Rule, error) {
	row := s.db.QueryRow(`
		SELECT id, survey_id, source_question_id, ord, is_active,
			condition, condition_group_id, action, created_at, updated_at
		FROM rules
		WHERE id = ? AND survey_id = ?
	`, id, surveyID)

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// List returns every rule for a survey in evaluation order.
func (s *SQLiteRuleStore) List(surveyID string) ([]*Rule, error) {
	rows, err := s.db.Query(`
		SELECT id, survey_id, source_question_id, ord, is_active,
			condition, condition_group_id, action, created_at, updated_at
		FROM rules
		WHERE survey_id = ?
		ORDER BY ord ASC, id ASC
	`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return out, nil
}

// ListActive returns the active rules for a survey in evaluation order.
func (s *SQLiteRuleStore) ListActive(surveyID string) ([]*Rule, error) {
	rows, err := s.db.Query(`
		SELECT id, survey_id, source_question_id, ord, is_active,
			condition, condition_group_id, action, created_at, updated_at
		FROM rules
		WHERE survey_id = ? AND is_active = 1
		ORDER BY ord ASC, id ASC
	`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return out, nil
}

// Update modifies an existing rule.
func (s *SQLiteRuleStore) Update(rule *Rule) error {
	condJSON, actionJSON, err := marshalPayloads(rule)
	if err != nil {
		return err
	}

	rule.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE rules
		SET source_question_id = ?, ord = ?, is_active = ?,
			condition = ?, condition_group_id = ?, action = ?, updated_at = ?
		WHERE id = ? AND survey_id = ?
	`, nullable(rule.SourceQuestionID), rule.Order, rule.IsActive,
		nullableBytes(condJSON), nullable(rule.GroupID), actionJSON, rule.UpdatedAt, rule.ID, rule.SurveyID)

	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %s not found", rule.ID)
	}

	return nil
}

// Delete removes a rule.
func (s *SQLiteRuleStore) Delete(surveyID, id string) error {
	result, err := s.db.Exec(`
		DELETE FROM rules
		WHERE id = ? AND survey_id = ?
	`, id, surveyID)

	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %s not found", id)
	}

	return nil
}

// AddGroup persists a condition group.
func (s *SQLiteRuleStore) AddGroup(group *Group) error {
	childrenJSON, err := json.Marshal(group.Children)
	if err != nil {
		return fmt.Errorf("failed to marshal group children: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO rule_groups (id, survey_id, operator, children)
		VALUES (?, ?, ?, ?)
	`, group.ID, group.SurveyID, string(group.Operator), childrenJSON)

	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	return nil
}

// ListGroups returns every condition group for a survey.
func (s *SQLiteRuleStore) ListGroups(surveyID string) ([]*Group, error) {
	rows, err := s.db.Query(`
		SELECT id, survey_id, operator, children
		FROM rule_groups
		WHERE survey_id = ?
		ORDER BY id ASC
	`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var out []*Group
	for rows.Next() {
		var g Group
		var operator string
		var childrenJSON []byte
		if err := rows.Scan(&g.ID, &g.SurveyID, &operator, &childrenJSON); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		g.Operator = GroupOperator(operator)
		if err := json.Unmarshal(childrenJSON, &g.Children); err != nil {
			return nil, fmt.Errorf("invalid children for group %s: %w", g.ID, err)
		}
		out = append(out, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	return out, nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
