package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PRESSWIRE_ENV", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT",
		"AZURE_OPENAI_DEPLOYMENT", "WORDPRESS_URL", "WORDPRESS_USERNAME", "WORDPRESS_PASSWORD",
		"WORDPRESS_JWT_TOKEN", "SENDGRID_API_KEY", "SMTP_PASSWORD", "DATABASE_DRIVER",
		"DATABASE_DSN", "PRESSWIRE_FEEDS",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presswire.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
feeds:
  urls:
    - https://example.com/feed.xml
  timeout: 10s
wordpress:
  url: https://blog.example.com
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feeds.MaxAgeHours != 24 || cfg.Feeds.MaxArticles != 20 {
		t.Errorf("feed defaults = %d/%d, want 24/20", cfg.Feeds.MaxAgeHours, cfg.Feeds.MaxArticles)
	}
	if cfg.Feeds.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.Feeds.Timeout)
	}
	if cfg.Pipeline.MaxArticlesPerDay != 3 || cfg.Pipeline.NewsletterTopN != 5 || cfg.Pipeline.NewsletterDays != 7 {
		t.Errorf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.WordPress.PostStatus != "draft" {
		t.Errorf("post status = %q, want draft", cfg.WordPress.PostStatus)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "presswire.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if len(cfg.Site.Categories) != len(DefaultCategories) {
		t.Errorf("categories = %v", cfg.Site.Categories)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("WORDPRESS_URL", "https://env.example.com")
	t.Setenv("DATABASE_DSN", "/tmp/env.db")
	t.Setenv("PRESSWIRE_FEEDS", "https://a/feed, https://b/feed")

	path := writeConfig(t, `
llm:
  api_key: sk-file
wordpress:
  url: https://file.example.com
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("api key = %q, want sk-env", cfg.LLM.APIKey)
	}
	if cfg.WordPress.URL != "https://env.example.com" {
		t.Errorf("wordpress url = %q", cfg.WordPress.URL)
	}
	if cfg.Database.DSN != "/tmp/env.db" {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	if len(cfg.Feeds.URLs) != 2 || cfg.Feeds.URLs[1] != "https://b/feed" {
		t.Errorf("feeds = %v", cfg.Feeds.URLs)
	}
}

func TestLoadAzureKeySelectsProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("AZURE_OPENAI_API_KEY", "az-key")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Provider != "azure" {
		t.Errorf("provider = %q, want azure", cfg.LLM.Provider)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "database:\n  driver: mysql\n  dsn: x\n")
	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	if !strings.Contains(err.Error(), "database.driver") {
		t.Errorf("err = %v", err)
	}
}

func TestRequireReportsEverything(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	err := cfg.Require(NeedFeeds, NeedLLM, NeedWordPress, NeedEmail)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	for _, want := range []string{"feeds.urls", "llm.api_key", "wordpress.url", "wordpress.jwt_token", "email.from_email", "site.url", "sendgrid_api_key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

func TestRequireAzure(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{Provider: "azure", APIKey: "k"}}
	cfg.applyDefaults()
	err := cfg.Require(NeedLLM)
	if err == nil || !strings.Contains(err.Error(), "azure_endpoint") || !strings.Contains(err.Error(), "azure_deployment") {
		t.Fatalf("err = %v", err)
	}
}

func TestRequireRelaxedInTesting(t *testing.T) {
	cfg := &Config{
		Env:       EnvTesting,
		Site:      SiteConfig{URL: "https://site"},
		Feeds:     FeedsConfig{URLs: []string{"https://a/feed"}},
		WordPress: WordPressConfig{URL: "https://blog"},
		Email:     EmailConfig{FromEmail: "news@site"},
	}
	cfg.applyDefaults()
	if err := cfg.Require(NeedFeeds, NeedLLM, NeedWordPress, NeedEmail); err != nil {
		t.Fatalf("require: %v", err)
	}
}

func TestScheduleDefaultsAndTimezone(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "schedule:\n  timezone: Europe/Belgrade\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Schedule.Daily != "0 9 * * *" || cfg.Schedule.Weekly != "0 10 * * 0" {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
	loc, err := cfg.Schedule.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "Europe/Belgrade" {
		t.Errorf("location = %v", loc)
	}

	_, err = Load(writeConfig(t, "schedule:\n  timezone: Mars/Olympus\n"))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}
