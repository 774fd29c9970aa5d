package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lemara98/post-automation/internal/config"
	"github.com/lemara98/post-automation/internal/content"
	"github.com/lemara98/post-automation/internal/email"
	"github.com/lemara98/post-automation/internal/feed"
	"github.com/lemara98/post-automation/internal/llm"
	"github.com/lemara98/post-automation/internal/logger"
	"github.com/lemara98/post-automation/internal/metrics"
	"github.com/lemara98/post-automation/internal/pipeline"
	"github.com/lemara98/post-automation/internal/store"
	"github.com/lemara98/post-automation/internal/wordpress"
)

// app is the wiring shared by every command: one config, one store.
type app struct {
	cfg   *config.Config
	store *store.Store
}

func openApp(configPath string, needs ...config.Need) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Require(needs...); err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	s, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &app{cfg: cfg, store: s}, nil
}

func (a *app) Close() error { return a.store.Close() }

func (a *app) provider() (llm.Provider, error) {
	c := a.cfg.LLM
	if c.Provider == "scripted" {
		return offlineProvider(), nil
	}
	return llm.New(llm.Options{
		Provider:        c.Provider,
		APIKey:          c.APIKey,
		Model:           c.Model,
		BaseURL:         c.BaseURL,
		AzureEndpoint:   c.AzureEndpoint,
		AzureDeployment: c.AzureDeployment,
		APIVersion:      c.APIVersion,
		Timeout:         c.Timeout,
	})
}

func (a *app) generator() (*content.Generator, error) {
	p, err := a.provider()
	if err != nil {
		return nil, err
	}
	return content.NewGenerator(p, content.Options{
		SiteName:    a.cfg.Site.Name,
		Audience:    a.cfg.Site.Audience,
		Focus:       a.cfg.Site.Focus,
		Categories:  a.cfg.Site.Categories,
		Temperature: a.cfg.LLM.Temperature,
		MaxTokens:   a.cfg.LLM.MaxTokens,
	}), nil
}

func (a *app) wordpress() (*wordpress.Client, error) {
	c := a.cfg.WordPress
	return wordpress.New(c.URL, wordpress.Auth{Username: c.Username, Password: c.Password, JWT: c.JWTToken}, c.Timeout)
}

func (a *app) mailer() (*email.Mailer, error) {
	c := a.cfg.Email
	p, err := email.NewProvider(email.Options{
		Provider:       c.Provider,
		FromEmail:      c.FromEmail,
		FromName:       c.FromName,
		SendGridAPIKey: c.SendGridAPIKey,
		SendGridHost:   c.SendGridHost,
		SMTPHost:       c.SMTPHost,
		SMTPPort:       c.SMTPPort,
		SMTPUsername:   c.SMTPUsername,
		SMTPPassword:   c.SMTPPassword,
		Timeout:        c.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return email.NewMailer(p, a.cfg.Site.Name, a.cfg.Site.URL, c.RatePerSecond, c.Burst), nil
}

func (a *app) daily(m *metrics.Run) (*pipeline.Daily, error) {
	gen, err := a.generator()
	if err != nil {
		return nil, err
	}
	wp, err := a.wordpress()
	if err != nil {
		return nil, err
	}
	fc := a.cfg.Feeds
	return &pipeline.Daily{
		Fetcher:   feed.NewFetcher(fc.URLs, nil, fc.Timeout, fc.UserAgent),
		Content:   feed.NewContentFetcher(fc.Timeout, fc.UserAgent),
		Writer:    gen,
		Publisher: wp,
		Ledger:    a.store,
		Metrics:   m,
		Options: pipeline.DailyOptions{
			MaxAge:           time.Duration(fc.MaxAgeHours) * time.Hour,
			MaxFetch:         fc.MaxArticles,
			MaxPerDay:        a.cfg.Pipeline.MaxArticlesPerDay,
			PostStatus:       a.cfg.WordPress.PostStatus,
			FetchFullContent: fc.FetchFullContent,
		},
	}, nil
}

func (a *app) weekly(m *metrics.Run, dryRun bool) (*pipeline.Weekly, error) {
	gen, err := a.generator()
	if err != nil {
		return nil, err
	}
	mailer, err := a.mailer()
	if err != nil {
		return nil, err
	}
	return &pipeline.Weekly{
		Archive: a.store,
		Editor:  gen,
		Mailer:  mailer,
		Metrics: m,
		Options: pipeline.WeeklyOptions{
			Days:     a.cfg.Pipeline.NewsletterDays,
			TopN:     a.cfg.Pipeline.NewsletterTopN,
			SiteName: a.cfg.Site.Name,
			DryRun:   dryRun,
		},
	}, nil
}

// runDaily runs one daily pass and pushes its metrics.
func (a *app) runDaily(ctx context.Context) (pipeline.DailyReport, error) {
	m := metrics.NewRun()
	d, err := a.daily(m)
	if err != nil {
		return pipeline.DailyReport{}, err
	}
	report, err := d.Run(ctx)
	m.Finish(err)
	m.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job, "daily")
	return report, err
}

func (a *app) runWeekly(ctx context.Context, dryRun bool) (pipeline.WeeklyReport, error) {
	m := metrics.NewRun()
	w, err := a.weekly(m, dryRun)
	if err != nil {
		return pipeline.WeeklyReport{}, err
	}
	report, err := w.Run(ctx)
	m.Finish(err)
	if !dryRun {
		m.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job, "weekly")
	}
	return report, err
}

// offlineProvider answers every generator prompt with canned text so the
// pipelines can run end to end without an API key.
func offlineProvider() llm.Provider {
	return llm.NewScripted(
		llm.Rule{Match: "write an engaging blog post", Reply: "TITLE:\nOffline draft\n\nEXCERPT:\nGenerated without a language model.\n\nCONTENT:\nThis post was produced by the offline provider.\n\nTAGS:\npresswire\n"},
		llm.Rule{Match: "linkedin post", Reply: "New on the blog. #presswire"},
		llm.Rule{Match: "engaging introduction", Reply: content.DefaultIntro},
		llm.Rule{Match: "weekly practice task", Reply: content.DefaultPracticeTask},
	)
}
