package flow

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRuleStore implements RuleStore backed by PostgreSQL. Condition and
// action payloads are stored as jsonb in their wire shape.
type PostgresRuleStore struct {
	db *sql.DB
}

// NewPostgresRuleStore creates a PostgreSQL-backed RuleStore.
func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

// Add inserts a new rule.
func (s *PostgresRuleStore) Add(rule *Rule) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM rules WHERE id = $1 AND survey_id = $2)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rule.ID, rule.SurveyID, nullable(rule.SourceQuestionID), rule.Order, rule.IsActive,
		condJSON, nullable(rule.GroupID), actionJSON, rule.CreatedAt, rule.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	return nil
}

// Get retrieves a rule by ID.
func (s *PostgresRuleStore) Get(surveyID, id string) (*Rule, error) {
	row := s.db.QueryRow(`
		SELECT id, survey_id, source_question_id, ord, is_active,
			condition, condition_group_id, action, created_at, updated_at
		FROM rules
		WHERE id = $1 AND survey_id = $2
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
func (s *PostgresRuleStore) List(surveyID string) ([]*Rule, error) {
	rows, err := s.db.Query(`
		SELECT id, survey_id, source_question_id, ord, is_active,
			condition, condition_group_id, action, created_at, updated_at
		FROM rules
		WHERE survey_id = $1
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
func (s *PostgresRuleStore) ListActive(surveyID string) ([]*Rule, error) {
	rows, err := s.db.Query(`
		SELECT id, survey_id, source_question_id, ord, is_active,
			condition, condition_group_id, action, created_at, updated_at
		FROM rules
		WHERE survey_id = $1 AND is_active = TRUE
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
func (s *PostgresRuleStore) Update(rule *Rule) error {
	condJSON, actionJSON, err := marshalPayloads(rule)
	if err != nil {
		return err
	}

	rule.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE rules
		SET source_question_id = $1, ord = $2, is_active = $3,
			condition = $4, condition_group_id = $5, action = $6, updated_at = $7
		WHERE id = $8 AND survey_id = $9
	`, nullable(rule.SourceQuestionID), rule.Order, rule.IsActive,
		condJSON, nullable(rule.GroupID), actionJSON, rule.UpdatedAt, rule.ID, rule.SurveyID)

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
func (s *PostgresRuleStore) Delete(surveyID, id string) error {
	result, err := s.db.Exec(`
		DELETE FROM rules
		WHERE id = $1 AND survey_id = $2
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

// AddGroup persists a condition group; children are stored as jsonb.
func (s *PostgresRuleStore) AddGroup(group *Group) error {
	childrenJSON, err := json.Marshal(group.Children)
	if err != nil {
		return fmt.Errorf("failed to marshal group children: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO rule_groups (id, survey_id, operator, children)
		VALUES ($1, $2, $3, $4)
	`, group.ID, group.SurveyID, string(group.Operator), childrenJSON)

	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	return nil
}

// ListGroups returns every condition group for a survey.
func (s *PostgresRuleStore) ListGroups(surveyID string) ([]*Group, error) {
	rows, err := s.db.Query(`
		SELECT id, survey_id, operator, children
		FROM rule_groups
		WHERE survey_id = $1
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var r Rule
	var sourceQuestionID, groupID sql.NullString
	var condJSON []byte
	var actionJSON []byte

	err := row.Scan(&r.ID, &r.SurveyID, &sourceQuestionID, &r.Order, &r.IsActive,
		&condJSON, &groupID, &actionJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.SourceQuestionID = sourceQuestionID.String
	r.GroupID = groupID.String

	if len(condJSON) > 0 {
		var c Condition
		if err := json.Unmarshal(condJSON, &c); err != nil {
			return nil, fmt.Errorf("invalid condition for rule %s: %w", r.ID, err)
		}
		r.Condition = &c
	}
	if err := json.Unmarshal(actionJSON, &r.Action); err != nil {
		return nil, fmt.Errorf("invalid action for rule %s: %w", r.ID, err)
	}

	return &r, nil
}

func marshalPayloads(rule *Rule) (condJSON, actionJSON []byte, err error) {
	if rule.Condition != nil {
		condJSON, err = json.Marshal(rule.Condition)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal condition: %w", err)
		}
	}
	actionJSON, err = json.Marshal(rule.Action)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal action: %w", err)
	}
	return condJSON, actionJSON, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
