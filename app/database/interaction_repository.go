package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLInteractionRepository handles the append-only interaction log
type SQLInteractionRepository struct {
	db *DB
}

var _ InteractionRepository = (*SQLInteractionRepository)(nil)

func NewInteractionRepository(db *DB) *SQLInteractionRepository {
	return &SQLInteractionRepository{db: db}
}

// Add appends an interaction. Multiple interactions per (user, item) pair
// may coexist; rows are never updated or deleted by the application.
func (r *SQLInteractionRepository) Add(i *Interaction) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`
		INSERT INTO interactions (id, user_id, item_id, kind, watch_seconds, completion_rate, dismiss_reason, collection, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, i.ID, i.UserID, i.ItemID, string(i.Kind),
		toNullInt(i.WatchSeconds), toNullFloat(i.CompletionRate),
		i.DismissReason, i.Collection, toUnix(i.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to add interaction: %w", err)
	}
	return nil
}

func (r *SQLInteractionRepository) ListForUser(userID string) ([]Interaction, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, item_id, kind, watch_seconds, completion_rate, dismiss_reason, collection, created_at
		FROM interactions
		WHERE user_id = ?
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var interactions []Interaction
	for rows.Next() {
		var i Interaction
		var kind string
		var watchSeconds sql.NullInt64
		var completionRate sql.NullFloat64
		var createdAt int64

		err := rows.Scan(&i.ID, &i.UserID, &i.ItemID, &kind, &watchSeconds, &completionRate, &i.DismissReason, &i.Collection, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction row: %w", err)
		}

		i.Kind = InteractionKind(kind)
		i.WatchSeconds = fromNullInt(watchSeconds)
		i.CompletionRate = fromNullFloat(completionRate)
		i.CreatedAt = fromUnix(createdAt)
		interactions = append(interactions, i)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interaction rows: %w", err)
	}

	return interactions, nil
}
