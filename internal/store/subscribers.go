package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

type Subscriber struct {
	ID                int64
	Email             string
	Name              string
	SubscribedAt      time.Time
	Confirmed         bool
	ConfirmationToken string
	UnsubscribeToken  string
	Active            bool
}

// SubscriberTokens lets callers supply tokens instead of generating them.
// Empty fields are generated.
type SubscriberTokens struct {
	Confirmation string
	Unsubscribe  string
}

type subscriberRow struct {
	ID                int64          `db:"id"`
	Email             string         `db:"email"`
	Name              sql.NullString `db:"name"`
	SubscribedAt      string         `db:"subscribed_at"`
	Confirmed         bool           `db:"confirmed"`
	ConfirmationToken sql.NullString `db:"confirmation_token"`
	UnsubscribeToken  sql.NullString `db:"unsubscribe_token"`
	Active            bool           `db:"active"`
}

func (r subscriberRow) subscriber() *Subscriber {
	return &Subscriber{
		ID:                r.ID,
		Email:             r.Email,
		Name:              r.Name.String,
		SubscribedAt:      parseTime(r.SubscribedAt),
		Confirmed:         r.Confirmed,
		ConfirmationToken: r.ConfirmationToken.String,
		UnsubscribeToken:  r.UnsubscribeToken.String,
		Active:            r.Active,
	}
}

const subscriberCols = `id, email, name, subscribed_at, confirmed, confirmation_token, unsubscribe_token, active`

// GenerateToken returns a URL-safe random token carrying 32 bytes of entropy.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AddSubscriber upserts by email and returns the row id. A new row gets
// fresh confirmation and unsubscribe tokens; an existing row only has its
// name replaced and keeps its tokens and state.
func (s *Store) AddSubscriber(ctx context.Context, email, name string, tokens ...SubscriberTokens) (int64, error) {
	email = normalizeEmail(email)
	if email == "" {
		return 0, fmt.Errorf("add subscriber: empty email")
	}
	var tok SubscriberTokens
	if len(tokens) > 0 {
		tok = tokens[0]
	}
	var err error
	if tok.Confirmation == "" {
		if tok.Confirmation, err = GenerateToken(); err != nil {
			return 0, err
		}
	}
	if tok.Unsubscribe == "" {
		if tok.Unsubscribe, err = GenerateToken(); err != nil {
			return 0, err
		}
	}

	var id int64
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &id, tx.Rebind(`INSERT INTO newsletter_subscribers
			(email, name, subscribed_at, confirmed, confirmation_token, unsubscribe_token, active)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(email) DO NOTHING
			RETURNING id`),
			email, nullString(name), s.timestamp(), false, tok.Confirmation, tok.Unsubscribe, true)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("insert subscriber: %w", err)
		}
		err = tx.GetContext(ctx, &id, tx.Rebind(`UPDATE newsletter_subscribers
			SET name = ?
			WHERE email = ?
			RETURNING id`),
			nullString(name), email)
		if err != nil {
			return fmt.Errorf("update subscriber: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add subscriber %s: %w", email, err)
	}
	return id, nil
}

// ConfirmSubscriber marks the subscriber holding token as confirmed.
// The token stays valid, so confirming twice returns true both times.
func (s *Store) ConfirmSubscriber(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var matched bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.GetContext(ctx, &id, tx.Rebind("SELECT id FROM newsletter_subscribers WHERE confirmation_token = ?"), token)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find subscriber: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("UPDATE newsletter_subscribers SET confirmed = ? WHERE id = ?"), true, id); err != nil {
			return fmt.Errorf("set confirmed: %w", err)
		}
		matched = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("confirm subscriber: %w", err)
	}
	return matched, nil
}

// Unsubscribe deactivates the subscriber holding token.
func (s *Store) Unsubscribe(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var matched bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.GetContext(ctx, &id, tx.Rebind("SELECT id FROM newsletter_subscribers WHERE unsubscribe_token = ?"), token)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find subscriber: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("UPDATE newsletter_subscribers SET active = ? WHERE id = ?"), false, id); err != nil {
			return fmt.Errorf("set inactive: %w", err)
		}
		matched = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("unsubscribe: %w", err)
	}
	return matched, nil
}

// ActiveSubscribers returns confirmed, active subscribers in id order.
func (s *Store) ActiveSubscribers(ctx context.Context) ([]*Subscriber, error) {
	var rows []subscriberRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind("SELECT "+subscriberCols+
		" FROM newsletter_subscribers WHERE confirmed = ? AND active = ? ORDER BY id"), true, true)
	if err != nil {
		return nil, fmt.Errorf("active subscribers: %w", err)
	}
	return subscribersFromRows(rows), nil
}

// ListSubscribers returns every subscriber regardless of state, in id order.
func (s *Store) ListSubscribers(ctx context.Context) ([]*Subscriber, error) {
	var rows []subscriberRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+subscriberCols+" FROM newsletter_subscribers ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return subscribersFromRows(rows), nil
}

func subscribersFromRows(rows []subscriberRow) []*Subscriber {
	out := make([]*Subscriber, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.subscriber())
	}
	return out
}

func (s *Store) GetSubscriberByEmail(ctx context.Context, email string) (*Subscriber, error) {
	var r subscriberRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind("SELECT "+subscriberCols+" FROM newsletter_subscribers WHERE email = ?"), normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return r.subscriber(), nil
}

// SubscriberCounts breaks the registry down by state.
type SubscriberCounts struct {
	Total       int `db:"total"`
	Active      int `db:"active"`
	Unconfirmed int `db:"unconfirmed"`
}

func (s *Store) CountSubscribers(ctx context.Context) (SubscriberCounts, error) {
	var c SubscriberCounts
	err := s.db.GetContext(ctx, &c, s.db.Rebind(`SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN confirmed = ? AND active = ? THEN 1 ELSE 0 END), 0) AS active,
		COALESCE(SUM(CASE WHEN confirmed = ? THEN 1 ELSE 0 END), 0) AS unconfirmed
		FROM newsletter_subscribers`), true, true, false)
	if err != nil {
		return SubscriberCounts{}, fmt.Errorf("count subscribers: %w", err)
	}
	return c, nil
}
