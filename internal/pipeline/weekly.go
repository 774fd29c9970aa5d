package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lemara98/post-automation/internal/content"
	"github.com/lemara98/post-automation/internal/email"
	"github.com/lemara98/post-automation/internal/feed"
	"github.com/lemara98/post-automation/internal/logger"
	"github.com/lemara98/post-automation/internal/metrics"
)

type WeeklyOptions struct {
	Days     int    // default 7
	TopN     int    // default 5
	SiteName string // source label for rows without one
	DryRun   bool   // render only, nothing is sent or recorded
}

func (o *WeeklyOptions) defaults() {
	if o.Days <= 0 {
		o.Days = 7
	}
	if o.TopN <= 0 {
		o.TopN = 5
	}
}

// Weekly mails the best of the past week to every active subscriber.
type Weekly struct {
	Archive Archive
	Editor  Editor
	Mailer  Mailer
	Metrics *metrics.Run // optional
	Options WeeklyOptions
	Now     func() time.Time
}

type WeeklyReport struct {
	RunID       string
	Subject     string
	Articles    int
	Recipients  int
	Sent        int
	Failed      int
	SuccessRate float64 // percent of recipients sent to
	SendID      int64
	HTML        string // rendered body, set on dry runs
}

// Run executes one weekly pass. Nothing to send is not an error.
func (w *Weekly) Run(ctx context.Context) (WeeklyReport, error) {
	opts := w.Options
	opts.defaults()
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	report := WeeklyReport{RunID: uuid.NewString()}
	log := logger.With("run_id", report.RunID, "pipeline", "weekly")
	log.Info("weekly run started", "days", opts.Days, "top_n", opts.TopN, "dry_run", opts.DryRun)

	rows, err := w.Archive.RecentArticles(ctx, opts.Days)
	if err != nil {
		return report, fmt.Errorf("recent articles: %w", err)
	}
	if len(rows) == 0 {
		log.Warn("no articles published in the window", "days", opts.Days)
		return report, nil
	}

	ids := make(map[string]int64, len(rows))
	articles := make([]feed.Article, 0, len(rows))
	for _, r := range rows {
		source := r.SourceName
		if source == "" {
			source = opts.SiteName
		}
		a := feed.Article{
			Title:     r.Title,
			URL:       r.BestURL(),
			Published: r.PublishedAt,
			Source:    source,
			Tags:      r.Tags,
		}
		ids[a.URL] = r.ID
		articles = append(articles, a)
	}

	top := w.Editor.Rank(ctx, articles, opts.TopN)
	report.Articles = len(top)
	for i, a := range top {
		log.Info("selected article", "rank", i+1, "title", a.Title)
	}

	intro, err := w.Editor.GenerateIntro(ctx, top)
	if err != nil {
		log.Warn("intro generation failed, using default", "error", err)
		intro = content.DefaultIntro
	}
	task, err := w.Editor.GenerateTask(ctx, top)
	if err != nil {
		log.Warn("practice task generation failed, using default", "error", err)
		task = content.DefaultPracticeTask
	}

	subs, err := w.Archive.ActiveSubscribers(ctx)
	if err != nil {
		return report, fmt.Errorf("active subscribers: %w", err)
	}
	if len(subs) == 0 {
		log.Warn("no active subscribers")
		return report, nil
	}
	report.Recipients = len(subs)

	report.Subject = fmt.Sprintf("Top %d Software Engineering News - %s", len(top), now().Format("January 2, 2006"))
	letter := email.Newsletter{Subject: report.Subject, Intro: intro, PracticeTask: task}
	var articleIDs []int64
	for _, a := range top {
		letter.Articles = append(letter.Articles, email.NewsletterArticle{
			Title:   a.Title,
			Summary: a.Summary,
			URL:     a.URL,
			Source:  a.Source,
		})
		if id, ok := ids[a.URL]; ok {
			articleIDs = append(articleIDs, id)
		}
	}
	body, err := w.Mailer.RenderNewsletter(letter)
	if err != nil {
		return report, err
	}

	if opts.DryRun {
		report.HTML = body
		log.Info("dry run, newsletter not sent", "subject", report.Subject, "recipients", report.Recipients)
		return report, nil
	}

	recipients := make([]email.Recipient, 0, len(subs))
	for _, s := range subs {
		recipients = append(recipients, email.Recipient{Email: s.Email, Name: s.Name, UnsubscribeToken: s.UnsubscribeToken})
	}
	results := w.Mailer.SendBulk(ctx, recipients, report.Subject, body)
	report.Sent, report.Failed = email.Tally(results)
	report.SuccessRate = float64(report.Sent) / float64(report.Recipients) * 100
	if w.Metrics != nil {
		w.Metrics.NewsletterSent.Add(float64(report.Sent))
		w.Metrics.NewsletterFailed.Add(float64(report.Failed))
	}

	report.SendID, err = w.Archive.RecordSend(ctx, report.Subject, articleIDs, report.Recipients, report.Sent)
	if err != nil {
		return report, fmt.Errorf("record send: %w", err)
	}
	log.Info("weekly run finished", "recipients", report.Recipients, "sent", report.Sent,
		"failed", report.Failed, "success_rate", fmt.Sprintf("%.1f%%", report.SuccessRate))
	return report, nil
}
