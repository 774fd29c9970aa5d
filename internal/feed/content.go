package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxContentBytes = 5 << 20

var contentSelectors = []string{"article", "main", ".post-content", ".article-content"}

// ContentFetcher downloads an article page and extracts its readable text.
type ContentFetcher struct {
	Client    *http.Client
	UserAgent string
}

func NewContentFetcher(timeout time.Duration, userAgent string) *ContentFetcher {
	return &ContentFetcher{Client: &http.Client{Timeout: timeout}, UserAgent: userAgent}
}

func (c *ContentFetcher) FetchContent(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return ExtractText(io.LimitReader(resp.Body, maxContentBytes))
}

// ExtractText returns the main text of an HTML page, one trimmed line per
// text line, with navigation and scripts removed.
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, nav, footer, aside, header, noscript").Remove()

	var sel *goquery.Selection
	for _, s := range contentSelectors {
		if found := doc.Find(s).First(); found.Length() > 0 {
			sel = found
			break
		}
	}
	if sel == nil {
		sel = doc.Find("body")
	}

	var lines []string
	for _, line := range strings.Split(sel.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
