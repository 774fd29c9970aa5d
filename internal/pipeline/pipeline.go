// Package pipeline runs the daily publishing job and the weekly newsletter
// job over narrow interfaces to the store and the external collaborators.
package pipeline

import (
	"context"
	"time"

	"github.com/lemara98/post-automation/internal/content"
	"github.com/lemara98/post-automation/internal/email"
	"github.com/lemara98/post-automation/internal/feed"
	"github.com/lemara98/post-automation/internal/store"
	"github.com/lemara98/post-automation/internal/wordpress"
)

// Fetcher is implemented by *feed.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, maxAge time.Duration, max int) ([]feed.Article, error)
}

// ContentFetcher is implemented by *feed.ContentFetcher.
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// Writer is the daily subset of *content.Generator.
type Writer interface {
	GeneratePost(ctx context.Context, a feed.Article) (*content.Post, error)
	Categorize(ctx context.Context, title, excerpt string) string
	GenerateSocialPost(ctx context.Context, a feed.Article) (string, error)
}

// Editor is the weekly subset of *content.Generator.
type Editor interface {
	Rank(ctx context.Context, articles []feed.Article, n int) []feed.Article
	GenerateIntro(ctx context.Context, articles []feed.Article) (string, error)
	GenerateTask(ctx context.Context, articles []feed.Article) (string, error)
}

// Publisher is implemented by *wordpress.Client.
type Publisher interface {
	CreatePost(ctx context.Context, p wordpress.Post) (*wordpress.CreatedPost, error)
}

// Ledger is the part of *store.Store the daily job writes to.
type Ledger interface {
	ArticleExists(ctx context.Context, url string) (bool, error)
	RecordArticle(ctx context.Context, rec store.LedgerRecord) (int64, error)
	EnqueueSocialPost(ctx context.Context, articleID int64, content string) (int64, error)
}

// Archive is the part of *store.Store the weekly job reads and writes.
type Archive interface {
	RecentArticles(ctx context.Context, days int) ([]*store.Article, error)
	ActiveSubscribers(ctx context.Context) ([]*store.Subscriber, error)
	RecordSend(ctx context.Context, subject string, articleIDs []int64, recipients, sent int) (int64, error)
}

// Mailer is implemented by *email.Mailer.
type Mailer interface {
	RenderNewsletter(n email.Newsletter) (string, error)
	SendBulk(ctx context.Context, recipients []email.Recipient, subject, body string) []email.Result
}
