package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	EnvProduction = "production"
	EnvTesting    = "testing"
)

// DefaultCategories is the fixed category set posts are sorted into.
var DefaultCategories = []string{
	"Software Development",
	"DevOps & Cloud",
	"AI & Machine Learning",
	"Programming Languages",
}

// Config represents the application configuration
type Config struct {
	Env       string          `yaml:"env"`
	Site      SiteConfig      `yaml:"site"`
	Feeds     FeedsConfig     `yaml:"feeds"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	LLM       LLMConfig       `yaml:"llm"`
	WordPress WordPressConfig `yaml:"wordpress"`
	Email     EmailConfig     `yaml:"email"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Web       WebConfig       `yaml:"web"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
}

type SiteConfig struct {
	Name       string   `yaml:"name"`
	URL        string   `yaml:"url"`
	Audience   string   `yaml:"audience"`
	Focus      string   `yaml:"focus"`
	Categories []string `yaml:"categories"`
}

type FeedsConfig struct {
	URLs             []string      `yaml:"urls"`
	MaxAgeHours      int           `yaml:"max_age_hours"`
	MaxArticles      int           `yaml:"max_articles"`
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"user_agent"`
	FetchFullContent bool          `yaml:"fetch_full_content"`
}

type PipelineConfig struct {
	MaxArticlesPerDay int `yaml:"max_articles_per_day"`
	NewsletterDays    int `yaml:"newsletter_days"`
	NewsletterTopN    int `yaml:"newsletter_top_n"`
}

type LLMConfig struct {
	Provider        string        `yaml:"provider"` // openai, azure or scripted
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url"`
	AzureEndpoint   string        `yaml:"azure_endpoint"`
	AzureDeployment string        `yaml:"azure_deployment"`
	APIVersion      string        `yaml:"api_version"`
	Timeout         time.Duration `yaml:"timeout"`
	Temperature     float32       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
}

type WordPressConfig struct {
	URL        string        `yaml:"url"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	JWTToken   string        `yaml:"jwt_token"`
	PostStatus string        `yaml:"post_status"`
	Timeout    time.Duration `yaml:"timeout"`
}

type EmailConfig struct {
	Provider       string        `yaml:"provider"` // sendgrid or smtp
	FromEmail      string        `yaml:"from_email"`
	FromName       string        `yaml:"from_name"`
	SendGridAPIKey string        `yaml:"sendgrid_api_key"`
	SendGridHost   string        `yaml:"sendgrid_host"`
	SMTPHost       string        `yaml:"smtp_host"`
	SMTPPort       int           `yaml:"smtp_port"`
	SMTPUsername   string        `yaml:"smtp_username"`
	SMTPPassword   string        `yaml:"smtp_password"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	Burst          int           `yaml:"burst"`
	Timeout        time.Duration `yaml:"timeout"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

type WebConfig struct {
	Addr               string  `yaml:"addr"`
	SubscribePerMinute float64 `yaml:"subscribe_per_minute"`
	SubscribeBurst     int     `yaml:"subscribe_burst"`
}

// ScheduleConfig drives `presswire schedule`. Daily and Weekly are cron
// expressions evaluated in Timezone.
type ScheduleConfig struct {
	Daily    string `yaml:"daily"`
	Weekly   string `yaml:"weekly"`
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone, UTC when empty.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from a yaml file, a .env file in the working
// directory, and the environment, in increasing precedence. An empty path
// skips the yaml file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Env, "PRESSWIRE_ENV")
	set(&c.LLM.APIKey, "OPENAI_API_KEY")
	if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
		if c.LLM.Provider == "" {
			c.LLM.Provider = "azure"
		}
	}
	set(&c.LLM.AzureEndpoint, "AZURE_OPENAI_ENDPOINT")
	set(&c.LLM.AzureDeployment, "AZURE_OPENAI_DEPLOYMENT")
	set(&c.WordPress.URL, "WORDPRESS_URL")
	set(&c.WordPress.Username, "WORDPRESS_USERNAME")
	set(&c.WordPress.Password, "WORDPRESS_PASSWORD")
	set(&c.WordPress.JWTToken, "WORDPRESS_JWT_TOKEN")
	set(&c.Email.SendGridAPIKey, "SENDGRID_API_KEY")
	set(&c.Email.SMTPPassword, "SMTP_PASSWORD")
	set(&c.Database.Driver, "DATABASE_DRIVER")
	set(&c.Database.DSN, "DATABASE_DSN")
	if v := os.Getenv("PRESSWIRE_FEEDS"); v != "" {
		c.Feeds.URLs = nil
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.Feeds.URLs = append(c.Feeds.URLs, u)
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = EnvProduction
	}
	if c.Site.Name == "" {
		c.Site.Name = "Presswire"
	}
	if c.Site.Audience == "" {
		c.Site.Audience = "software engineers and tech professionals"
	}
	if c.Site.Focus == "" {
		c.Site.Focus = "practical software engineering"
	}
	if len(c.Site.Categories) == 0 {
		c.Site.Categories = append([]string(nil), DefaultCategories...)
	}
	if c.Feeds.MaxAgeHours == 0 {
		c.Feeds.MaxAgeHours = 24
	}
	if c.Feeds.MaxArticles == 0 {
		c.Feeds.MaxArticles = 20
	}
	if c.Feeds.Timeout == 0 {
		c.Feeds.Timeout = 30 * time.Second
	}
	if c.Feeds.UserAgent == "" {
		c.Feeds.UserAgent = "presswire/1.0"
	}
	if c.Pipeline.MaxArticlesPerDay == 0 {
		c.Pipeline.MaxArticlesPerDay = 3
	}
	if c.Pipeline.NewsletterDays == 0 {
		c.Pipeline.NewsletterDays = 7
	}
	if c.Pipeline.NewsletterTopN == 0 {
		c.Pipeline.NewsletterTopN = 5
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.APIVersion == "" {
		c.LLM.APIVersion = "2024-02-01"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 120 * time.Second
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2000
	}
	if c.WordPress.PostStatus == "" {
		c.WordPress.PostStatus = "draft"
	}
	if c.WordPress.Timeout == 0 {
		c.WordPress.Timeout = 30 * time.Second
	}
	if c.Email.Provider == "" {
		c.Email.Provider = "sendgrid"
	}
	if c.Email.FromName == "" {
		c.Email.FromName = c.Site.Name
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Email.RatePerSecond == 0 {
		c.Email.RatePerSecond = 5
	}
	if c.Email.Burst == 0 {
		c.Email.Burst = 1
	}
	if c.Email.Timeout == 0 {
		c.Email.Timeout = 30 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "presswire.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "presswire"
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}
	if c.Web.SubscribePerMinute == 0 {
		c.Web.SubscribePerMinute = 10
	}
	if c.Web.SubscribeBurst == 0 {
		c.Web.SubscribeBurst = 3
	}
	if c.Schedule.Daily == "" {
		c.Schedule.Daily = "0 9 * * *"
	}
	if c.Schedule.Weekly == "" {
		c.Schedule.Weekly = "0 10 * * 0"
	}
}

// Testing reports whether credential checks are relaxed.
func (c *Config) Testing() bool {
	return c.Env == EnvTesting
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var problems []string
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("database.driver must be 'sqlite' or 'postgres', got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		problems = append(problems, "database.dsn is required")
	}
	switch c.LLM.Provider {
	case "openai", "azure", "scripted":
	default:
		problems = append(problems, fmt.Sprintf("llm.provider must be 'openai', 'azure' or 'scripted', got %q", c.LLM.Provider))
	}
	switch c.Email.Provider {
	case "sendgrid", "smtp":
	default:
		problems = append(problems, fmt.Sprintf("email.provider must be 'sendgrid' or 'smtp', got %q", c.Email.Provider))
	}
	if _, err := c.Schedule.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	return invalid(problems)
}

// Need names a capability a command depends on.
type Need int

const (
	NeedFeeds Need = iota
	NeedLLM
	NeedWordPress
	NeedEmail
)

// Require reports every missing setting for the given needs at once.
// Credentials are not required in the testing environment.
func (c *Config) Require(needs ...Need) error {
	var problems []string
	for _, n := range needs {
		switch n {
		case NeedFeeds:
			if len(c.Feeds.URLs) == 0 {
				problems = append(problems, "feeds.urls must list at least one feed")
			}
		case NeedLLM:
			if c.Testing() || c.LLM.Provider == "scripted" {
				continue
			}
			if c.LLM.APIKey == "" {
				problems = append(problems, "llm.api_key is required (OPENAI_API_KEY or AZURE_OPENAI_API_KEY)")
			}
			if c.LLM.Provider == "azure" {
				if c.LLM.AzureEndpoint == "" {
					problems = append(problems, "llm.azure_endpoint is required for azure")
				}
				if c.LLM.AzureDeployment == "" {
					problems = append(problems, "llm.azure_deployment is required for azure")
				}
			}
		case NeedWordPress:
			if c.WordPress.URL == "" {
				problems = append(problems, "wordpress.url is required")
			}
			if c.Testing() {
				continue
			}
			if c.WordPress.JWTToken == "" && (c.WordPress.Username == "" || c.WordPress.Password == "") {
				problems = append(problems, "wordpress.jwt_token or wordpress.username and wordpress.password are required")
			}
		case NeedEmail:
			if c.Email.FromEmail == "" {
				problems = append(problems, "email.from_email is required")
			}
			if c.Site.URL == "" {
				problems = append(problems, "site.url is required for subscription links")
			}
			if c.Testing() {
				continue
			}
			switch c.Email.Provider {
			case "sendgrid":
				if c.Email.SendGridAPIKey == "" {
					problems = append(problems, "email.sendgrid_api_key is required (SENDGRID_API_KEY)")
				}
			case "smtp":
				if c.Email.SMTPHost == "" {
					problems = append(problems, "email.smtp_host is required")
				}
			}
		}
	}
	return invalid(problems)
}

func invalid(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}
