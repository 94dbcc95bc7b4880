package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLSourceRepository handles database operations for sources
type SQLSourceRepository struct {
	db *DB
}

var _ SourceRepository = (*SQLSourceRepository)(nil)

func NewSourceRepository(db *DB) *SQLSourceRepository {
	return &SQLSourceRepository{db: db}
}

func (r *SQLSourceRepository) EnsureUser(userID, name string) error {
	_, err := r.db.Exec(`
		INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name
	`, userID, name, toUnix(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

func (r *SQLSourceRepository) ListUsers() ([]string, error) {
	rows, err := r.db.Query(`SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RegisterSource inserts a source or, when the (user, type, source id) triple
// already exists, refreshes its display name and avatar. Fetch state and the
// backlog cursor are never touched here; those belong to the orchestrator.
func (r *SQLSourceRepository) RegisterSource(s *Source) (string, error) {
	now := toUnix(time.Now())
	id := uuid.NewString()

	_, err := r.db.Exec(`
		INSERT INTO sources (id, user_id, source_type, source_id, display_name, avatar_url, muted, fetch_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)
		ON CONFLICT (user_id, source_type, source_id) DO UPDATE SET
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at
	`, id, s.UserID, string(s.Type), s.SourceID, s.DisplayName, s.AvatarURL, s.Muted, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to register source: %w", err)
	}

	var dbID string
	err = r.db.QueryRow(`
		SELECT id FROM sources WHERE user_id = ? AND source_type = ? AND source_id = ?
	`, s.UserID, string(s.Type), s.SourceID).Scan(&dbID)
	if err != nil {
		return "", fmt.Errorf("failed to get registered source id: %w", err)
	}

	return dbID, nil
}

const sourceColumns = `id, user_id, source_type, source_id, display_name, avatar_url, muted,
	last_fetched_at, fetch_status, fetch_error,
	backlog_page_token, backlog_complete, backlog_fetched_at, backlog_video_count,
	created_at, updated_at`

func (r *SQLSourceRepository) scanSource(row interface{ Scan(...any) error }) (*Source, error) {
	var s Source
	var srcType, status string
	var lastFetched, backlogFetched sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&s.ID, &s.UserID, &srcType, &s.SourceID, &s.DisplayName, &s.AvatarURL, &s.Muted,
		&lastFetched, &status, &s.FetchError,
		&s.BacklogPageToken, &s.BacklogComplete, &backlogFetched, &s.BacklogVideoCount,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Type = SourceType(srcType)
	s.FetchStatus = FetchStatus(status)
	s.LastFetchedAt = fromUnixPtr(lastFetched)
	s.BacklogFetchedAt = fromUnixPtr(backlogFetched)
	s.CreatedAt = fromUnix(createdAt)
	s.UpdatedAt = fromUnix(updatedAt)

	return &s, nil
}

func (r *SQLSourceRepository) GetSource(id string) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)

	s, err := r.scanSource(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return s, nil
}

func (r *SQLSourceRepository) querySources(query string, args ...any) ([]Source, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := r.scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

func (r *SQLSourceRepository) ListSourcesForUser(userID string) ([]Source, error) {
	return r.querySources(`SELECT `+sourceColumns+` FROM sources WHERE user_id = ? ORDER BY display_name`, userID)
}

// ListFetchableSources returns all non-muted sources across users in a
// stable order for the sequential fetch loop.
func (r *SQLSourceRepository) ListFetchableSources() ([]Source, error) {
	return r.querySources(`SELECT ` + sourceColumns + ` FROM sources WHERE muted = 0 ORDER BY created_at, id`)
}

func (r *SQLSourceRepository) SetMuted(id string, muted bool) error {
	res, err := r.db.Exec(`UPDATE sources SET muted = ?, updated_at = ? WHERE id = ?`, muted, toUnix(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to set muted: %w", err)
	}
	return requireRow(res)
}

func (r *SQLSourceRepository) RemoveSource(id string) error {
	res, err := r.db.Exec(`DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove source: %w", err)
	}
	return requireRow(res)
}

func (r *SQLSourceRepository) GetSourceCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

// MarkFetchSuccess records a clean fetch and clears any previous error.
func (r *SQLSourceRepository) MarkFetchSuccess(id string, at time.Time) error {
	res, err := r.db.Exec(`
		UPDATE sources
		SET fetch_status = 'success', fetch_error = '', last_fetched_at = ?, updated_at = ?
		WHERE id = ?
	`, toUnix(at), toUnix(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to mark fetch success: %w", err)
	}
	return requireRow(res)
}

// MarkFetchError records a failed fetch. The source stays eligible for
// future attempts; there is no terminal state.
func (r *SQLSourceRepository) MarkFetchError(id string, at time.Time, message string) error {
	res, err := r.db.Exec(`
		UPDATE sources
		SET fetch_status = 'error', fetch_error = ?, last_fetched_at = ?, updated_at = ?
		WHERE id = ?
	`, message, toUnix(at), toUnix(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to mark fetch error: %w", err)
	}
	return requireRow(res)
}

// UpdateBacklogCursor persists the crawl cursor together with the item-count
// increment it accounts for in a single statement, so a crash can never
// separate the two. Re-fetching the same page after a crash is tolerated by
// the deduplicated item write.
func (r *SQLSourceRepository) UpdateBacklogCursor(id string, token string, complete bool, at time.Time, countDelta int) error {
	res, err := r.db.Exec(`
		UPDATE sources
		SET backlog_page_token = ?, backlog_complete = ?, backlog_fetched_at = ?,
		    backlog_video_count = backlog_video_count + ?, updated_at = ?
		WHERE id = ?
	`, token, complete, toUnix(at), countDelta, toUnix(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update backlog cursor: %w", err)
	}
	return requireRow(res)
}

// ListBacklogCandidates returns non-muted sources with an incomplete backlog
// crawl that have not been crawled within the cooldown, smallest accumulated
// count first so under-filled sources are prioritized.
func (r *SQLSourceRepository) ListBacklogCandidates(cooldown time.Duration, limit int) ([]Source, error) {
	cutoff := toUnix(time.Now().Add(-cooldown))
	return r.querySources(`
		SELECT `+sourceColumns+` FROM sources
		WHERE muted = 0
		  AND backlog_complete = 0
		  AND (backlog_fetched_at IS NULL OR backlog_fetched_at <= ?)
		ORDER BY backlog_video_count ASC, created_at ASC
		LIMIT ?
	`, cutoff, limit)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
