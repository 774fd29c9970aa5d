package content

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)
	bodyPolicy = bluemonday.UGCPolicy()
)

type sections struct {
	title   string
	excerpt string
	content string
	tags    []string
}

// parseSections splits a TITLE/EXCERPT/CONTENT/TAGS/SOURCE response. Text
// on the marker line counts toward that section; SOURCE is ignored.
func parseSections(resp string) sections {
	var sec sections
	var title, excerpt, body []string
	current := ""

	addTags := func(s string) {
		for _, t := range strings.Split(s, ",") {
			t = strings.Trim(strings.TrimSpace(t), "#[]")
			if t != "" {
				sec.tags = append(sec.tags, t)
			}
		}
	}

	for _, line := range strings.Split(resp, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		marker := ""
		for _, m := range []string{"TITLE:", "EXCERPT:", "CONTENT:", "TAGS:", "SOURCE:"} {
			if strings.HasPrefix(upper, m) {
				marker = m
				break
			}
		}
		if marker != "" {
			current = strings.TrimSuffix(marker, ":")
			rest := strings.TrimSpace(trimmed[len(marker):])
			line = rest
			if rest == "" {
				continue
			}
		}
		switch current {
		case "TITLE":
			title = append(title, line)
		case "EXCERPT":
			excerpt = append(excerpt, line)
		case "CONTENT":
			body = append(body, line)
		case "TAGS":
			addTags(line)
		}
	}

	sec.title = strings.Trim(strings.TrimSpace(strings.Join(title, " ")), `"*#`)
	sec.title = strings.TrimSpace(sec.title)
	sec.excerpt = strings.TrimSpace(strings.Join(excerpt, " "))
	sec.content = strings.TrimSpace(strings.Join(body, "\n"))
	return sec
}

// renderBody converts markdown to sanitized HTML and wraps it with the
// excerpt lead and a source footer.
func renderBody(md, excerpt, sourceURL string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	body := bodyPolicy.Sanitize(buf.String())

	var out strings.Builder
	out.WriteString(`<div class="presswire-article">` + "\n")
	if excerpt != "" {
		fmt.Fprintf(&out, "<p class=\"lead\">%s</p>\n\n", html.EscapeString(excerpt))
	}
	out.WriteString(body)
	if sourceURL != "" {
		u := html.EscapeString(sourceURL)
		fmt.Fprintf(&out, "\n<hr />\n<p class=\"source\"><strong>Source:</strong> <a href=\"%s\" target=\"_blank\" rel=\"noopener noreferrer\">%s</a></p>\n", u, u)
	}
	out.WriteString("</div>")
	return out.String(), nil
}
