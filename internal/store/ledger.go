package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const timeFmt = "2006-01-02T15:04:05Z"

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFmt, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFmt)
}

// Article is one row of the publication ledger.
type Article struct {
	ID              int64
	Title           string
	SourceURL       string
	WordPressPostID *int64
	WordPressURL    *string
	PublishedAt     time.Time
	SourceName      string
	Tags            []string
}

// BestURL is the published post URL when known, else the source URL.
func (a *Article) BestURL() string {
	if a.WordPressURL != nil && *a.WordPressURL != "" {
		return *a.WordPressURL
	}
	return a.SourceURL
}

// LedgerRecord is the input to RecordArticle. A zero PublishedAt means now.
type LedgerRecord struct {
	Title           string
	SourceURL       string
	WordPressPostID *int64
	WordPressURL    *string
	SourceName      string
	Tags            []string
	PublishedAt     time.Time
}

type articleRow struct {
	ID              int64          `db:"id"`
	Title           string         `db:"title"`
	SourceURL       string         `db:"source_url"`
	WordPressPostID sql.NullInt64  `db:"wordpress_post_id"`
	WordPressURL    sql.NullString `db:"wordpress_url"`
	PublishedAt     string         `db:"published_at"`
	SourceName      sql.NullString `db:"source_name"`
	Tags            sql.NullString `db:"tags"`
}

func (r articleRow) article() *Article {
	a := &Article{
		ID:          r.ID,
		Title:       r.Title,
		SourceURL:   r.SourceURL,
		PublishedAt: parseTime(r.PublishedAt),
		SourceName:  r.SourceName.String,
		Tags:        splitTags(r.Tags.String),
	}
	if r.WordPressPostID.Valid {
		id := r.WordPressPostID.Int64
		a.WordPressPostID = &id
	}
	if r.WordPressURL.Valid {
		u := r.WordPressURL.String
		a.WordPressURL = &u
	}
	return a
}

const articleCols = `id, title, source_url, wordpress_post_id, wordpress_url, published_at, source_name, tags`

func joinTags(tags []string) sql.NullString {
	var clean []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.Join(clean, ","), Valid: true}
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// RecordArticle upserts a ledger entry keyed by source_url and returns its id.
// On conflict only wordpress_post_id and wordpress_url are replaced; the
// original title, source, tags and published_at are kept.
func (s *Store) RecordArticle(ctx context.Context, rec LedgerRecord) (int64, error) {
	if rec.SourceURL == "" {
		return 0, fmt.Errorf("empty source url")
	}
	publishedAt := rec.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = s.now()
	}

	var postID sql.NullInt64
	if rec.WordPressPostID != nil {
		postID = sql.NullInt64{Int64: *rec.WordPressPostID, Valid: true}
	}
	var postURL sql.NullString
	if rec.WordPressURL != nil {
		postURL = sql.NullString{String: *rec.WordPressURL, Valid: true}
	}

	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &id, tx.Rebind(`INSERT INTO published_articles
			(title, source_url, wordpress_post_id, wordpress_url, published_at, source_name, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source_url) DO NOTHING
			RETURNING id`),
			rec.Title, rec.SourceURL, postID, postURL, formatTime(publishedAt),
			nullString(rec.SourceName), joinTags(rec.Tags))
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("insert article: %w", err)
		}
		err = tx.GetContext(ctx, &id, tx.Rebind(`UPDATE published_articles
			SET wordpress_post_id = ?, wordpress_url = ?
			WHERE source_url = ?
			RETURNING id`),
			postID, postURL, rec.SourceURL)
		if err != nil {
			return fmt.Errorf("update article: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", rec.SourceURL, err)
	}
	return id, nil
}

// ArticleExists reports whether url has a ledger entry.
func (s *Store) ArticleExists(ctx context.Context, url string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind("SELECT COUNT(*) FROM published_articles WHERE source_url = ?"), url); err != nil {
		return false, fmt.Errorf("article exists: %w", err)
	}
	return n > 0, nil
}

func (s *Store) GetArticleByURL(ctx context.Context, url string) (*Article, error) {
	var r articleRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind("SELECT "+articleCols+" FROM published_articles WHERE source_url = ?"), url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return r.article(), nil
}

// RecentArticles returns entries published within the last days days,
// newest first.
func (s *Store) RecentArticles(ctx context.Context, days int) ([]*Article, error) {
	cutoff := formatTime(s.now().Add(-time.Duration(days) * 24 * time.Hour))
	var rows []articleRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind("SELECT "+articleCols+
		" FROM published_articles WHERE published_at > ? ORDER BY published_at DESC, id DESC"), cutoff)
	if err != nil {
		return nil, fmt.Errorf("recent articles: %w", err)
	}
	out := make([]*Article, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.article())
	}
	return out, nil
}

// CountArticles returns the total number of ledger entries.
func (s *Store) CountArticles(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM published_articles"); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}
