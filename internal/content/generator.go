// Package content turns source articles into blog posts, social copy and
// newsletter text through an llm.Provider.
package content

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lemara98/post-automation/internal/feed"
	"github.com/lemara98/post-automation/internal/llm"
	"github.com/lemara98/post-automation/internal/logger"
)

const (
	DefaultIntro        = "Welcome to this week's edition of the newsletter! Here are the top stories you shouldn't miss."
	DefaultPracticeTask = "Weekly Practice: Take a small piece of code you wrote recently and refactor it using a modern language feature you have not tried yet. Focus on making the code easier to read and reason about, and write down what changed and why."
)

// Options shapes the prompts. Categories is the fixed set Categorize picks
// from; the first entry is the fallback.
type Options struct {
	SiteName    string
	Audience    string
	Focus       string
	Categories  []string
	Temperature float32
	MaxTokens   int
}

// Post is a generated blog post. Body is sanitized HTML ready to publish.
type Post struct {
	Title   string
	Body    string
	Excerpt string
	Tags    []string
}

type Generator struct {
	llm  llm.Provider
	opts Options
}

func NewGenerator(p llm.Provider, opts Options) *Generator {
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2000
	}
	if opts.Audience == "" {
		opts.Audience = "software engineers and tech professionals"
	}
	if opts.Focus == "" {
		opts.Focus = "practical software engineering"
	}
	return &Generator{llm: p, opts: opts}
}

func (g *Generator) chat(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	out, err := g.llm.Chat(ctx, llm.Request{
		Messages:    []llm.Message{llm.System(system), llm.User(user)},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// GeneratePost rewrites a into a blog post.
func (g *Generator) GeneratePost(ctx context.Context, a feed.Article) (*Post, error) {
	prompt := fmt.Sprintf(postPrompt, g.opts.SiteName, g.opts.Audience, g.opts.Focus,
		a.Title, a.Source, a.URL, summaryFor(a), g.opts.Focus)
	out, err := g.chat(ctx, "You are an expert tech content writer.", prompt, g.opts.Temperature, g.opts.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("generate post: %w", err)
	}
	sec := parseSections(out)
	if sec.content == "" {
		return nil, fmt.Errorf("generate post: response has no content section")
	}
	title := sec.title
	if title == "" {
		title = a.Title
	}
	body, err := renderBody(sec.content, sec.excerpt, a.URL)
	if err != nil {
		return nil, fmt.Errorf("generate post: %w", err)
	}
	logger.Info("generated post", "title", title, "source", a.URL)
	return &Post{Title: title, Body: body, Excerpt: sec.excerpt, Tags: sec.tags}, nil
}

func summaryFor(a feed.Article) string {
	if a.Content != "" {
		return feed.Truncate(a.Content, 3000)
	}
	return a.Summary
}

// Categorize picks one of the configured categories. Any failure or an
// answer outside the set yields the first category.
func (g *Generator) Categorize(ctx context.Context, title, excerpt string) string {
	if len(g.opts.Categories) == 0 {
		return ""
	}
	fallback := g.opts.Categories[0]
	var list strings.Builder
	for _, c := range g.opts.Categories {
		fmt.Fprintf(&list, "- %s\n", c)
	}
	prompt := fmt.Sprintf(categoryPrompt, title, feed.Truncate(excerpt, 300), list.String())
	out, err := g.chat(ctx, "You are an expert at categorizing technical content.", prompt, 0.3, 50)
	if err != nil {
		logger.Warn("categorize failed, using default", "title", title, "error", err)
		return fallback
	}
	answer := strings.Trim(out, " \t\r\n\"'.")
	for _, c := range g.opts.Categories {
		if strings.EqualFold(c, answer) {
			return c
		}
	}
	logger.Warn("categorize returned unknown category, using default", "category", answer)
	return fallback
}

// GenerateSocialPost writes a short LinkedIn-style post ending in the link.
func (g *Generator) GenerateSocialPost(ctx context.Context, a feed.Article) (string, error) {
	prompt := fmt.Sprintf(socialPrompt, g.opts.Focus, a.Title, a.Source, a.Summary, a.URL)
	out, err := g.chat(ctx, "You are a tech professional sharing insights on LinkedIn.", prompt, 0.7, 300)
	if err != nil {
		return "", fmt.Errorf("generate social post: %w", err)
	}
	if out == "" {
		return "", fmt.Errorf("generate social post: empty response")
	}
	return out, nil
}

var indexPattern = regexp.MustCompile(`\d+`)

// Rank returns up to n articles in the order the model prefers. If the
// call fails or yields nothing usable the first n articles are returned.
func (g *Generator) Rank(ctx context.Context, articles []feed.Article, n int) []feed.Article {
	if n <= 0 || len(articles) == 0 {
		return nil
	}
	fallback := articles
	if len(fallback) > n {
		fallback = fallback[:n]
	}

	var list strings.Builder
	for i, a := range articles {
		tags := "None"
		if len(a.Tags) > 0 {
			tags = strings.Join(a.Tags, ", ")
		}
		fmt.Fprintf(&list, "[%d] %s\nSource: %s\nSummary: %s\nTags: %s\n\n", i+1, a.Title, a.Source, a.Summary, tags)
	}
	prompt := fmt.Sprintf(rankPrompt, n, g.opts.Audience, g.opts.Focus, list.String(), n)
	out, err := g.chat(ctx, "You are an expert content curator for tech professionals.", prompt, 0.3, 100)
	if err != nil {
		logger.Warn("rank failed, using newest articles", "error", err)
		return fallback
	}

	seen := map[int]bool{}
	var picked []feed.Article
	for _, m := range indexPattern.FindAllString(out, -1) {
		i, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		i--
		if i < 0 || i >= len(articles) || seen[i] {
			continue
		}
		seen[i] = true
		picked = append(picked, articles[i])
		if len(picked) == n {
			break
		}
	}
	if len(picked) == 0 {
		logger.Warn("rank response had no usable indices, using newest articles", "response", out)
		return fallback
	}
	logger.Info("ranked articles", "candidates", len(articles), "selected", len(picked))
	return picked
}

func titleList(articles []feed.Article) string {
	var b strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&b, "- %s\n", a.Title)
	}
	return b.String()
}

// GenerateIntro writes the newsletter opening paragraph.
func (g *Generator) GenerateIntro(ctx context.Context, articles []feed.Article) (string, error) {
	out, err := g.chat(ctx, "You are writing a tech newsletter introduction.", fmt.Sprintf(introPrompt, titleList(articles)), 0.8, 150)
	if err != nil {
		return "", fmt.Errorf("generate intro: %w", err)
	}
	if out == "" {
		return "", fmt.Errorf("generate intro: empty response")
	}
	return out, nil
}

// GenerateTask writes a small hands-on exercise inspired by the articles.
func (g *Generator) GenerateTask(ctx context.Context, articles []feed.Article) (string, error) {
	prompt := fmt.Sprintf(taskPrompt, g.opts.Focus, titleList(articles))
	out, err := g.chat(ctx, "You are a senior engineer and mentor creating weekly practice tasks.", prompt, 0.8, 250)
	if err != nil {
		return "", fmt.Errorf("generate task: %w", err)
	}
	if out == "" {
		return "", fmt.Errorf("generate task: empty response")
	}
	return out, nil
}
