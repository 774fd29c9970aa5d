package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// QueuedPost is a social post waiting for (or done with) manual posting.
type QueuedPost struct {
	ID           int64
	ArticleID    *int64
	Content      string
	CreatedAt    time.Time
	Posted       bool
	PostedAt     *time.Time
	ArticleTitle string
	ArticleURL   string
}

type queueRow struct {
	ID           int64          `db:"id"`
	ArticleID    sql.NullInt64  `db:"article_id"`
	Content      string         `db:"post_content"`
	CreatedAt    string         `db:"created_at"`
	Posted       bool           `db:"posted"`
	PostedAt     sql.NullString `db:"posted_at"`
	ArticleTitle sql.NullString `db:"title"`
	WordPressURL sql.NullString `db:"wordpress_url"`
	SourceURL    sql.NullString `db:"source_url"`
}

func (r queueRow) post() *QueuedPost {
	p := &QueuedPost{
		ID:           r.ID,
		Content:      r.Content,
		CreatedAt:    parseTime(r.CreatedAt),
		Posted:       r.Posted,
		ArticleTitle: r.ArticleTitle.String,
		ArticleURL:   r.WordPressURL.String,
	}
	if p.ArticleURL == "" {
		p.ArticleURL = r.SourceURL.String
	}
	if r.ArticleID.Valid {
		id := r.ArticleID.Int64
		p.ArticleID = &id
	}
	if r.PostedAt.Valid {
		t := parseTime(r.PostedAt.String)
		p.PostedAt = &t
	}
	return p
}

// EnqueueSocialPost stores content for articleID. The article id is not
// checked against the ledger.
func (s *Store) EnqueueSocialPost(ctx context.Context, articleID int64, content string) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(`INSERT INTO social_queue (article_id, post_content, created_at, posted)
		VALUES (?, ?, ?, ?) RETURNING id`), articleID, content, s.timestamp(), false)
	if err != nil {
		return 0, fmt.Errorf("enqueue social post: %w", err)
	}
	return id, nil
}

// PendingSocialPosts returns unposted entries newest first. limit <= 0
// returns all of them.
func (s *Store) PendingSocialPosts(ctx context.Context, limit int) ([]*QueuedPost, error) {
	q := `SELECT q.id, q.article_id, q.post_content, q.created_at, q.posted, q.posted_at,
			a.title, a.wordpress_url, a.source_url
		FROM social_queue q
		LEFT JOIN published_articles a ON a.id = q.article_id
		WHERE q.posted = ?
		ORDER BY q.created_at DESC, q.id DESC`
	args := []any{false}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	var rows []queueRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("pending social posts: %w", err)
	}
	out := make([]*QueuedPost, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.post())
	}
	return out, nil
}

// MarkSocialPostPosted flips a pending entry to posted. It returns false if
// the entry does not exist or was already posted.
func (s *Store) MarkSocialPostPosted(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE social_queue SET posted = ?, posted_at = ?
		WHERE id = ? AND posted = ?`), true, s.timestamp(), id, false)
	if err != nil {
		return false, fmt.Errorf("mark social post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark social post: %w", err)
	}
	return n > 0, nil
}
