package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLPreferenceRepository handles per-user preferences and filter rules
type SQLPreferenceRepository struct {
	db *DB
}

var _ PreferenceRepository = (*SQLPreferenceRepository)(nil)

func NewPreferenceRepository(db *DB) *SQLPreferenceRepository {
	return &SQLPreferenceRepository{db: db}
}

// Get returns the user's preferences, falling back to documented defaults
// when the user has never stored any.
func (r *SQLPreferenceRepository) Get(userID string) (*Preferences, error) {
	var p Preferences
	var minDur, maxDur sql.NullInt64
	var updatedAt int64

	err := r.db.QueryRow(`
		SELECT user_id, backlog_ratio, max_consecutive, min_duration_seconds, max_duration_seconds, theme, density, updated_at
		FROM preferences
		WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.BacklogRatio, &p.MaxConsecutive, &minDur, &maxDur, &p.Theme, &p.Density, &updatedAt)

	if err == sql.ErrNoRows {
		return DefaultPreferences(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	p.MinDurationSeconds = fromNullInt(minDur)
	p.MaxDurationSeconds = fromNullInt(maxDur)
	p.UpdatedAt = fromUnix(updatedAt)

	return &p, nil
}

func (r *SQLPreferenceRepository) Upsert(p *Preferences) error {
	_, err := r.db.Exec(`
		INSERT INTO preferences (user_id, backlog_ratio, max_consecutive, min_duration_seconds, max_duration_seconds, theme, density, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			backlog_ratio = excluded.backlog_ratio,
			max_consecutive = excluded.max_consecutive,
			min_duration_seconds = excluded.min_duration_seconds,
			max_duration_seconds = excluded.max_duration_seconds,
			theme = excluded.theme,
			density = excluded.density,
			updated_at = excluded.updated_at
	`, p.UserID, p.BacklogRatio, p.MaxConsecutive,
		toNullInt(p.MinDurationSeconds), toNullInt(p.MaxDurationSeconds),
		p.Theme, p.Density, toUnix(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return nil
}

func (r *SQLPreferenceRepository) ListFilterRules(userID string) ([]FilterRule, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, kind, pattern, min_seconds, max_seconds, created_at
		FROM filter_rules
		WHERE user_id = ?
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list filter rules: %w", err)
	}
	defer rows.Close()

	var rules []FilterRule
	for rows.Next() {
		var rule FilterRule
		var kind string
		var minSec, maxSec sql.NullInt64
		var createdAt int64

		err := rows.Scan(&rule.ID, &rule.UserID, &kind, &rule.Pattern, &minSec, &maxSec, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan filter rule row: %w", err)
		}

		rule.Kind = FilterRuleKind(kind)
		rule.MinSeconds = fromNullInt(minSec)
		rule.MaxSeconds = fromNullInt(maxSec)
		rule.CreatedAt = fromUnix(createdAt)
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating filter rule rows: %w", err)
	}

	return rules, nil
}

func (r *SQLPreferenceRepository) AddFilterRule(rule *FilterRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`
		INSERT INTO filter_rules (id, user_id, kind, pattern, min_seconds, max_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.UserID, string(rule.Kind), rule.Pattern,
		toNullInt(rule.MinSeconds), toNullInt(rule.MaxSeconds), toUnix(rule.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to add filter rule: %w", err)
	}
	return nil
}

func (r *SQLPreferenceRepository) DeleteFilterRule(id string) error {
	res, err := r.db.Exec(`DELETE FROM filter_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete filter rule: %w", err)
	}
	return requireRow(res)
}
