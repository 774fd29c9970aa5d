package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Send is one row of newsletter send history.
type Send struct {
	ID             int64
	SentAt         time.Time
	Subject        string
	ArticleIDs     []int64
	RecipientCount int
	SentCount      int
}

type sendRow struct {
	ID             int64          `db:"id"`
	SentAt         string         `db:"sent_at"`
	Subject        string         `db:"subject"`
	ArticleIDs     sql.NullString `db:"article_ids"`
	RecipientCount int            `db:"recipient_count"`
	SentCount      int            `db:"sent_count"`
}

func (s *Store) RecordSend(ctx context.Context, subject string, articleIDs []int64, recipients, sent int) (int64, error) {
	ids := make([]string, 0, len(articleIDs))
	for _, id := range articleIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(`INSERT INTO newsletter_sends
		(sent_at, subject, article_ids, recipient_count, sent_count)
		VALUES (?, ?, ?, ?, ?) RETURNING id`),
		s.timestamp(), subject, nullString(strings.Join(ids, ",")), recipients, sent)
	if err != nil {
		return 0, fmt.Errorf("record send: %w", err)
	}
	return id, nil
}

// RecentSends returns the last n sends, newest first.
func (s *Store) RecentSends(ctx context.Context, n int) ([]*Send, error) {
	if n <= 0 {
		n = 10
	}
	var rows []sendRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT id, sent_at, subject, article_ids, recipient_count, sent_count
		FROM newsletter_sends ORDER BY sent_at DESC, id DESC LIMIT ?`), n)
	if err != nil {
		return nil, fmt.Errorf("recent sends: %w", err)
	}
	out := make([]*Send, 0, len(rows))
	for _, r := range rows {
		snd := &Send{
			ID:             r.ID,
			SentAt:         parseTime(r.SentAt),
			Subject:        r.Subject,
			RecipientCount: r.RecipientCount,
			SentCount:      r.SentCount,
		}
		for _, part := range strings.Split(r.ArticleIDs.String, ",") {
			if v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
				snd.ArticleIDs = append(snd.ArticleIDs, v)
			}
		}
		out = append(out, snd)
	}
	return out, nil
}
