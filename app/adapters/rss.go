package adapters

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/subtide/subtide/app/database"
)

// SourceTypeRSS identifies video channels exposed as RSS/Atom feeds.
const SourceTypeRSS database.SourceType = "rss"

// RSSAdapter serves video channels published as RSS/Atom feeds. The
// canonical source ID is the feed URL. Feed documents are not paginated at
// the transport level, so the backlog cursor is an offset into the feed's
// entry list, encoded as an opaque token owned by this adapter.
type RSSAdapter struct {
	httpClient   *http.Client
	gofeedParser *gofeed.Parser
	userAgent    string
}

var _ Adapter = (*RSSAdapter)(nil)

func NewRSSAdapter(httpClient *http.Client, userAgent string) *RSSAdapter {
	return &RSSAdapter{
		httpClient:   httpClient,
		gofeedParser: gofeed.NewParser(),
		userAgent:    userAgent,
	}
}

func (a *RSSAdapter) FetchRecent(ctx context.Context, sourceID string, days int) ([]Item, error) {
	feed, err := a.fetchFeed(ctx, "FetchRecent", sourceID)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var items []Item
	for _, entry := range feed.Items {
		item := a.normalizeItem(entry)
		if item.PublishedAt.Before(cutoff) {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func (a *RSSAdapter) FetchBacklog(ctx context.Context, sourceID string, limit int, pageToken string) (BacklogPage, error) {
	offset, err := decodeOffsetToken(pageToken)
	if err != nil {
		return BacklogPage{}, fmt.Errorf("invalid page token %q: %w", pageToken, err)
	}

	feed, err := a.fetchFeed(ctx, "FetchBacklog", sourceID)
	if err != nil {
		return BacklogPage{}, err
	}

	if offset >= len(feed.Items) {
		return BacklogPage{HasMore: false}, nil
	}

	end := min(offset+limit, len(feed.Items))
	items := make([]Item, 0, end-offset)
	for _, entry := range feed.Items[offset:end] {
		items = append(items, a.normalizeItem(entry))
	}

	page := BacklogPage{Items: items}
	if end < len(feed.Items) {
		page.HasMore = true
		page.NextPageToken = encodeOffsetToken(end)
	}

	return page, nil
}

func (a *RSSAdapter) ValidateSource(ctx context.Context, identifier string) (Validation, error) {
	identifier = strings.TrimSpace(identifier)
	if !strings.HasPrefix(identifier, "http://") && !strings.HasPrefix(identifier, "https://") {
		return Validation{Valid: false, Message: "identifier must be a feed URL"}, nil
	}

	feed, err := a.fetchFeed(ctx, "ValidateSource", identifier)
	if err != nil {
		if IsNotFound(err) {
			return Validation{Valid: false, Message: "feed does not exist"}, nil
		}
		return Validation{}, err
	}

	v := Validation{
		Valid:       true,
		ResolvedID:  identifier,
		DisplayName: feed.Title,
	}
	if feed.Image != nil {
		v.AvatarURL = feed.Image.URL
	}

	return v, nil
}

func (a *RSSAdapter) SourceMetadata(ctx context.Context, sourceID string) (Metadata, error) {
	feed, err := a.fetchFeed(ctx, "SourceMetadata", sourceID)
	if err != nil {
		return Metadata{}, err
	}

	m := Metadata{
		DisplayName: feed.Title,
		Description: feed.Description,
	}
	if feed.Image != nil {
		m.AvatarURL = feed.Image.URL
	}
	if n := len(feed.Items); n > 0 {
		m.TotalContent = &n
	}

	return m, nil
}

func (a *RSSAdapter) fetchFeed(ctx context.Context, op, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, &NotFoundError{SourceID: url}
	case resp.StatusCode != http.StatusOK:
		return nil, &TransportError{Op: op, URL: url, Err: fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}

	feed, err := a.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	return feed, nil
}

func (a *RSSAdapter) normalizeItem(entry *gofeed.Item) Item {
	item := Item{
		OriginalID:  cmp.Or(entry.GUID, entry.Link),
		Title:       entry.Title,
		Description: entry.Description,
		URL:         entry.Link,
	}

	if entry.PublishedParsed != nil {
		item.PublishedAt = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		item.PublishedAt = entry.UpdatedParsed.UTC()
	}

	if entry.Image != nil {
		item.ThumbnailURL = entry.Image.URL
	}

	if entry.ITunesExt != nil && entry.ITunesExt.Duration != "" {
		if seconds, ok := parseDuration(entry.ITunesExt.Duration); ok {
			item.DurationSeconds = &seconds
		}
	}

	return item
}

// parseDuration handles the duration formats seen in the wild: plain
// seconds, MM:SS, and HH:MM:SS.
func parseDuration(raw string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, false
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}

	return total, true
}

const offsetTokenPrefix = "o:"

func encodeOffsetToken(offset int) string {
	return offsetTokenPrefix + strconv.Itoa(offset)
}

func decodeOffsetToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	if !strings.HasPrefix(token, offsetTokenPrefix) {
		return 0, fmt.Errorf("unexpected token format")
	}
	offset, err := strconv.Atoi(token[len(offsetTokenPrefix):])
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("unexpected token format")
	}
	return offset, nil
}
