// Package feed pulls recent entries from RSS and Atom sources and turns them
// into deduplicated, newest-first articles.
package feed

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lemara98/post-automation/internal/logger"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

// ErrNoFeedsReachable is returned when every configured feed failed.
var ErrNoFeedsReachable = errors.New("no feeds reachable")

const (
	summaryLimit = 500
	noTitle      = "No Title"
)

// Article is a candidate source item. URL is its identity.
type Article struct {
	Title     string
	URL       string
	Summary   string
	Content   string
	Published time.Time
	Source    string
	Author    string
	Tags      []string
}

// Fetcher reads a fixed list of feeds one after another.
type Fetcher struct {
	URLs   []string
	Now    func() time.Time
	parser *gofeed.Parser
}

// NewFetcher builds a fetcher over urls. A nil client gets a default with
// timeout applied.
func NewFetcher(urls []string, client *http.Client, timeout time.Duration, userAgent string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	fp := gofeed.NewParser()
	fp.Client = client
	if userAgent != "" {
		fp.UserAgent = userAgent
	}
	return &Fetcher{URLs: urls, Now: time.Now, parser: fp}
}

// Fetch returns up to max articles newer than maxAge, newest first and
// unique by URL. A feed that fails is logged and skipped; only when all of
// them fail is ErrNoFeedsReachable returned.
func (f *Fetcher) Fetch(ctx context.Context, maxAge time.Duration, max int) ([]Article, error) {
	now := f.Now()
	cutoff := now.Add(-maxAge)

	var all []Article
	var failed int
	var firstErr error
	for _, u := range f.URLs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := f.fetchOne(ctx, u, now)
		if err != nil {
			logger.Warn("feed fetch failed", "feed", u, "error", err)
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		kept := 0
		for _, a := range items {
			if a.Published.Before(cutoff) {
				continue
			}
			all = append(all, a)
			kept++
		}
		logger.Debug("feed fetched", "feed", u, "entries", len(items), "recent", kept)
	}

	if len(f.URLs) > 0 && failed == len(f.URLs) {
		return nil, fmt.Errorf("%w: %d feeds failed, first: %v", ErrNoFeedsReachable, failed, firstErr)
	}

	out := Merge(all, max)
	logger.Info("feeds fetched", "feeds", len(f.URLs), "failed", failed, "articles", len(out))
	return out, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url string, now time.Time) ([]Article, error) {
	parsed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	source := strings.TrimSpace(parsed.Title)
	if source == "" {
		source = url
	}
	out := make([]Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if a, ok := fromItem(item, source, now); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func fromItem(item *gofeed.Item, source string, now time.Time) (Article, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}
	if link == "" {
		return Article{}, false
	}
	title := CleanText(item.Title)
	if title == "" {
		title = noTitle
	}
	raw := item.Description
	if strings.TrimSpace(raw) == "" {
		raw = item.Content
	}
	return Article{
		Title:     title,
		URL:       link,
		Summary:   Truncate(CleanText(raw), summaryLimit),
		Published: itemTime(item, now),
		Source:    source,
		Author:    itemAuthor(item),
		Tags:      itemTags(item),
	}, true
}

var dateFormats = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, f := range dateFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// itemTime prefers the published date, then updated, then dublin core date,
// and finally now.
func itemTime(item *gofeed.Item, now time.Time) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	for _, s := range []string{item.Published, item.Updated} {
		if t, ok := parseDate(s); ok {
			return t.UTC()
		}
	}
	if dc := item.DublinCoreExt; dc != nil {
		for _, s := range dc.Date {
			if t, ok := parseDate(s); ok {
				return t.UTC()
			}
		}
	}
	return now.UTC()
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, p := range item.Authors {
		if p != nil && p.Name != "" {
			return p.Name
		}
	}
	if dc := item.DublinCoreExt; dc != nil && len(dc.Creator) > 0 {
		return dc.Creator[0]
	}
	return ""
}

func itemTags(item *gofeed.Item) []string {
	var tags []string
	seen := map[string]bool{}
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		tags = append(tags, t)
	}
	for _, c := range item.Categories {
		add(c)
	}
	if dc := item.DublinCoreExt; dc != nil {
		for _, s := range dc.Subject {
			add(s)
		}
	}
	return tags
}

// Merge sorts articles newest first, keeps the first copy of each URL and
// truncates to max. max <= 0 means no limit.
func Merge(articles []Article, max int) []Article {
	sorted := append([]Article(nil), articles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Published.After(sorted[j].Published)
	})
	seen := make(map[string]bool, len(sorted))
	out := make([]Article, 0, len(sorted))
	for _, a := range sorted {
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		out = append(out, a)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

var (
	stripPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)
	spaceRun    = regexp.MustCompile(`\s+`)
)

// CleanText strips markup, unescapes entities and collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// Truncate cuts s to at most limit runes, ending in "..." when cut.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
