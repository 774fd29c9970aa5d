package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lemara98/post-automation/internal/feed"
	"github.com/lemara98/post-automation/internal/logger"
	"github.com/lemara98/post-automation/internal/metrics"
	"github.com/lemara98/post-automation/internal/store"
	"github.com/lemara98/post-automation/internal/wordpress"
)

type DailyOptions struct {
	MaxAge           time.Duration // default 24h
	MaxFetch         int           // default 20
	MaxPerDay        int           // default 3
	PostStatus       string        // default draft
	FetchFullContent bool
}

func (o *DailyOptions) defaults() {
	if o.MaxAge <= 0 {
		o.MaxAge = 24 * time.Hour
	}
	if o.MaxFetch <= 0 {
		o.MaxFetch = 20
	}
	if o.MaxPerDay <= 0 {
		o.MaxPerDay = 3
	}
	if o.PostStatus == "" {
		o.PostStatus = "draft"
	}
}

// Daily fetches fresh articles, publishes up to MaxPerDay of the ones not
// yet in the ledger and queues a social post for each.
type Daily struct {
	Fetcher   Fetcher
	Content   ContentFetcher // optional, used when FetchFullContent is set
	Writer    Writer
	Publisher Publisher
	Ledger    Ledger
	Metrics   *metrics.Run // optional
	Options   DailyOptions
}

type DailyReport struct {
	RunID     string
	Found     int
	New       int
	Processed int
	Failed    int
}

// Run executes one daily pass. Errors are returned only for failures that
// make the whole run meaningless: no feed reachable, ledger unreadable or
// ctx cancelled. A failure on one article is logged and counted.
func (d *Daily) Run(ctx context.Context) (DailyReport, error) {
	opts := d.Options
	opts.defaults()
	report := DailyReport{RunID: uuid.NewString()}
	log := logger.With("run_id", report.RunID, "pipeline", "daily")
	log.Info("daily run started", "max_age", opts.MaxAge, "max_fetch", opts.MaxFetch, "max_per_day", opts.MaxPerDay)

	articles, err := d.Fetcher.Fetch(ctx, opts.MaxAge, opts.MaxFetch)
	if err != nil {
		return report, fmt.Errorf("fetch feeds: %w", err)
	}
	report.Found = len(articles)
	d.count(func(m *metrics.Run) { m.ArticlesFound.Add(float64(report.Found)) })
	if len(articles) == 0 {
		log.Warn("no new articles found")
		return report, nil
	}

	var fresh []feed.Article
	for _, a := range articles {
		exists, err := d.Ledger.ArticleExists(ctx, a.URL)
		if err != nil {
			return report, fmt.Errorf("check ledger for %s: %w", a.URL, err)
		}
		if !exists {
			fresh = append(fresh, a)
		}
	}
	report.New = len(fresh)
	d.count(func(m *metrics.Run) { m.ArticlesNew.Add(float64(report.New)) })
	log.Info("filtered published articles", "found", report.Found, "new", report.New)

	if len(fresh) > opts.MaxPerDay {
		fresh = fresh[:opts.MaxPerDay]
	}
	for _, a := range fresh {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		alog := log.With("url", a.URL)
		if err := d.process(ctx, alog, opts, a); err != nil {
			alog.Error("article failed", "title", a.Title, "error", err)
			report.Failed++
			d.count(func(m *metrics.Run) { m.ArticlesFailed.Inc() })
			continue
		}
		report.Processed++
		d.count(func(m *metrics.Run) { m.ArticlesProcessed.Inc() })
	}

	log.Info("daily run finished", "found", report.Found, "new", report.New,
		"processed", report.Processed, "failed", report.Failed)
	return report, nil
}

func (d *Daily) process(ctx context.Context, log *slog.Logger, opts DailyOptions, a feed.Article) error {
	if opts.FetchFullContent && d.Content != nil && a.Content == "" {
		text, err := d.Content.FetchContent(ctx, a.URL)
		if err != nil {
			log.Warn("full content unavailable, using summary", "error", err)
		} else {
			a.Content = text
		}
	}

	post, err := d.Writer.GeneratePost(ctx, a)
	if err != nil {
		return err
	}
	category := d.Writer.Categorize(ctx, post.Title, post.Excerpt)
	log.Info("publishing", "title", post.Title, "category", category)

	var categories []string
	if category != "" {
		categories = []string{category}
	}
	created, err := d.Publisher.CreatePost(ctx, wordpress.Post{
		Title:      post.Title,
		Content:    post.Body,
		Status:     opts.PostStatus,
		Excerpt:    post.Excerpt,
		Tags:       post.Tags,
		Categories: categories,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	postID := created.ID
	link := created.Link
	id, err := d.Ledger.RecordArticle(ctx, store.LedgerRecord{
		Title:           post.Title,
		SourceURL:       a.URL,
		WordPressPostID: &postID,
		WordPressURL:    &link,
		SourceName:      a.Source,
		Tags:            post.Tags,
	})
	if err != nil {
		return fmt.Errorf("record article: %w", err)
	}

	social, err := d.Writer.GenerateSocialPost(ctx, a)
	if err != nil {
		return fmt.Errorf("social post: %w", err)
	}
	if _, err := d.Ledger.EnqueueSocialPost(ctx, id, social); err != nil {
		return fmt.Errorf("queue social post: %w", err)
	}
	log.Info("article processed", "article_id", id, "wordpress_id", created.ID, "link", created.Link)
	return nil
}

func (d *Daily) count(fn func(m *metrics.Run)) {
	if d.Metrics != nil {
		fn(d.Metrics)
	}
}
