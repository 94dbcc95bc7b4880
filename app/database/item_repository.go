package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// keyChunkSize bounds the number of (source_type, original_id) pairs per
// statement, keeping parameter counts well under SQLite's limit.
const keyChunkSize = 200

// SQLItemRepository handles database operations for content items
type SQLItemRepository struct {
	db *DB
}

var _ ItemRepository = (*SQLItemRepository)(nil)

func NewItemRepository(db *DB) *SQLItemRepository {
	return &SQLItemRepository{db: db}
}

// FindExistingKeys performs one bulk existence check for the given dedup
// keys and returns the subset already present.
func (r *SQLItemRepository) FindExistingKeys(keys []ItemKey) (map[ItemKey]struct{}, error) {
	found := make(map[ItemKey]struct{}, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	for start := 0; start < len(keys); start += keyChunkSize {
		chunk := keys[start:min(start+keyChunkSize, len(keys))]

		preds := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*2)
		for _, k := range chunk {
			preds = append(preds, "(source_type = ? AND original_id = ?)")
			args = append(args, string(k.SourceType), k.OriginalID)
		}

		query := `SELECT source_type, original_id FROM content_items WHERE ` + strings.Join(preds, " OR ")
		rows, err := r.db.Query(query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing keys: %w", err)
		}

		for rows.Next() {
			var srcType, originalID string
			if err := rows.Scan(&srcType, &originalID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan key row: %w", err)
			}
			found[ItemKey{SourceType: SourceType(srcType), OriginalID: originalID}] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating key rows: %w", err)
		}
		rows.Close()
	}

	return found, nil
}

// StoreBatch deduplicates and persists one fetched batch: a single bulk key
// lookup partitions the batch into unknown and already-known items, unknown
// ones are bulk-inserted (duplicates ignored on conflict) and known ones get
// a bulk last-seen refresh. Both writes run in one transaction so a source's
// new items become visible together. Returns the count of genuinely new items.
func (r *SQLItemRepository) StoreBatch(sourceRowID string, items []NewItem, now time.Time) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	keys := make([]ItemKey, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.Key())
	}

	existing, err := r.FindExistingKeys(keys)
	if err != nil {
		return 0, err
	}

	var fresh []NewItem
	var known []ItemKey
	seen := make(map[ItemKey]struct{}, len(items))
	for _, item := range items {
		key := item.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, ok := existing[key]; ok {
			known = append(known, key)
		} else {
			fresh = append(fresh, item)
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.insertItems(tx, sourceRowID, fresh, now); err != nil {
		return 0, err
	}
	if err := r.touchLastSeen(tx, known, now); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit item batch: %w", err)
	}

	return len(fresh), nil
}

func (r *SQLItemRepository) insertItems(tx *sql.Tx, sourceRowID string, items []NewItem, now time.Time) error {
	if len(items) == 0 {
		return nil
	}

	for start := 0; start < len(items); start += keyChunkSize {
		chunk := items[start:min(start+keyChunkSize, len(items))]

		values := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*12)
		for _, item := range chunk {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				uuid.NewString(), string(item.SourceType), item.OriginalID, sourceRowID,
				item.Title, item.Description, item.ThumbnailURL, item.URL,
				toNullInt(item.DurationSeconds), toUnix(item.PublishedAt), toUnix(now), toUnix(now),
			)
		}

		query := `
			INSERT OR IGNORE INTO content_items (
				id, source_type, original_id, source_row_id,
				title, description, thumbnail_url, url,
				duration_seconds, published_at, first_fetched_at, last_seen_at
			) VALUES ` + strings.Join(values, ", ")

		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("failed to insert items: %w", err)
		}
	}

	return nil
}

func (r *SQLItemRepository) touchLastSeen(tx *sql.Tx, keys []ItemKey, now time.Time) error {
	if len(keys) == 0 {
		return nil
	}

	for start := 0; start < len(keys); start += keyChunkSize {
		chunk := keys[start:min(start+keyChunkSize, len(keys))]

		preds := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*2+1)
		args = append(args, toUnix(now))
		for _, k := range chunk {
			preds = append(preds, "(source_type = ? AND original_id = ?)")
			args = append(args, string(k.SourceType), k.OriginalID)
		}

		query := `UPDATE content_items SET last_seen_at = ? WHERE ` + strings.Join(preds, " OR ")
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("failed to refresh last seen: %w", err)
		}
	}

	return nil
}

// ListItemsForSources returns all known items belonging to the given source
// rows, newest first.
func (r *SQLItemRepository) ListItemsForSources(sourceRowIDs []string) ([]ContentItem, error) {
	if len(sourceRowIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(sourceRowIDs))
	args := make([]any, len(sourceRowIDs))
	for i, id := range sourceRowIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := r.db.Query(`
		SELECT id, source_type, original_id, source_row_id,
		       title, description, thumbnail_url, url,
		       duration_seconds, published_at, first_fetched_at, last_seen_at
		FROM content_items
		WHERE source_row_id IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY published_at DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		var item ContentItem
		var srcType string
		var duration sql.NullInt64
		var publishedAt, firstFetchedAt, lastSeenAt int64

		err := rows.Scan(
			&item.ID, &srcType, &item.OriginalID, &item.SourceRowID,
			&item.Title, &item.Description, &item.ThumbnailURL, &item.URL,
			&duration, &publishedAt, &firstFetchedAt, &lastSeenAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}

		item.SourceType = SourceType(srcType)
		item.DurationSeconds = fromNullInt(duration)
		item.PublishedAt = fromUnix(publishedAt)
		item.FirstFetchedAt = fromUnix(firstFetchedAt)
		item.LastSeenAt = fromUnix(lastSeenAt)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func (r *SQLItemRepository) GetItemCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM content_items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}
