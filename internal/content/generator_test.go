package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lemara98/post-automation/internal/feed"
	"github.com/lemara98/post-automation/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postReply = `TITLE:
Why Connection Pools Matter

EXCERPT:
Pools keep latency flat.
They also protect the database.

CONTENT:
## The problem

Opening a connection is *expensive*.

<script>alert(1)</script>

- reuse
- limit

TAGS:
databases, performance,
#go

SOURCE:
http://x/1
`

var testCategories = []string{"Software Development", "DevOps & Cloud", "AI & Machine Learning"}

func newTestGenerator(p llm.Provider) *Generator {
	return NewGenerator(p, Options{SiteName: "Example", Categories: testCategories})
}

func sample(n int) []feed.Article {
	var out []feed.Article
	for i := 0; i < n; i++ {
		out = append(out, feed.Article{Title: "Article " + string(rune('A'+i)), URL: "http://x/" + string(rune('a'+i))})
	}
	return out
}

func TestGeneratePost(t *testing.T) {
	p := llm.NewScripted().On("write an engaging blog post", postReply)
	g := newTestGenerator(p)

	post, err := g.GeneratePost(context.Background(), feed.Article{Title: "Orig", URL: "http://x/1", Summary: "s"})
	require.NoError(t, err)

	assert.Equal(t, "Why Connection Pools Matter", post.Title)
	assert.Equal(t, "Pools keep latency flat. They also protect the database.", post.Excerpt)
	assert.Equal(t, []string{"databases", "performance", "go"}, post.Tags)
	assert.Contains(t, post.Body, "<h2")
	assert.Contains(t, post.Body, "<em>expensive</em>")
	assert.Contains(t, post.Body, "<li>reuse</li>")
	assert.NotContains(t, post.Body, "<script")
	assert.Contains(t, post.Body, `<p class="lead">Pools keep latency flat. They also protect the database.</p>`)
	assert.Contains(t, post.Body, `href="http://x/1"`)

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.InDelta(t, 0.7, calls[0].Temperature, 0.001)
	assert.Equal(t, 2000, calls[0].MaxTokens)
}

func TestGeneratePostTitleFallback(t *testing.T) {
	p := llm.NewScripted().On("write an engaging blog post", "CONTENT:\nJust a body.")
	post, err := newTestGenerator(p).GeneratePost(context.Background(), feed.Article{Title: "Orig", URL: "http://x/1"})
	require.NoError(t, err)
	assert.Equal(t, "Orig", post.Title)
	assert.Contains(t, post.Body, "Just a body.")
}

func TestGeneratePostErrors(t *testing.T) {
	p := llm.NewScripted().Fail("blog post", errors.New("quota"))
	_, err := newTestGenerator(p).GeneratePost(context.Background(), feed.Article{URL: "http://x/1"})
	require.Error(t, err)

	p = llm.NewScripted().On("blog post", "TITLE: only a title")
	_, err = newTestGenerator(p).GeneratePost(context.Background(), feed.Article{URL: "http://x/1"})
	require.Error(t, err, "missing content section")
}

func TestCategorize(t *testing.T) {
	ctx := context.Background()

	g := newTestGenerator(llm.NewScripted().On("categorizing", " devops & cloud. "))
	assert.Equal(t, "DevOps & Cloud", g.Categorize(ctx, "k8s", "pods"))

	g = newTestGenerator(llm.NewScripted().On("categorizing", "Cooking"))
	assert.Equal(t, "Software Development", g.Categorize(ctx, "t", "e"))

	g = newTestGenerator(llm.NewScripted().Fail("categorizing", errors.New("down")))
	assert.Equal(t, "Software Development", g.Categorize(ctx, "t", "e"))
}

func TestGenerateSocialPost(t *testing.T) {
	g := newTestGenerator(llm.NewScripted().On("linkedin post", "  Big news! http://x/1  "))
	got, err := g.GenerateSocialPost(context.Background(), feed.Article{Title: "t", URL: "http://x/1"})
	require.NoError(t, err)
	assert.Equal(t, "Big news! http://x/1", got)

	g = newTestGenerator(llm.NewScripted().On("linkedin post", "   "))
	_, err = g.GenerateSocialPost(context.Background(), feed.Article{})
	require.Error(t, err)
}

func TestRank(t *testing.T) {
	ctx := context.Background()
	articles := sample(6)

	g := newTestGenerator(llm.NewScripted().On("most valuable articles", "Top picks: 3, 1, 3, 99, 0, 5"))
	got := g.Rank(ctx, articles, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Article C", "Article A", "Article E"}, []string{got[0].Title, got[1].Title, got[2].Title})
}

func TestRankFallsBackToFirstN(t *testing.T) {
	ctx := context.Background()
	articles := sample(6)

	g := newTestGenerator(llm.NewScripted().Fail("most valuable articles", errors.New("down")))
	got := g.Rank(ctx, articles, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "Article A", got[0].Title)

	g = newTestGenerator(llm.NewScripted().On("most valuable articles", "none of them"))
	got = g.Rank(ctx, articles, 10)
	assert.Len(t, got, 6)

	assert.Empty(t, g.Rank(ctx, nil, 5))
}

func TestIntroAndTask(t *testing.T) {
	ctx := context.Background()
	p := llm.NewScripted().
		On("engaging introduction", "Hello readers.").
		On("weekly practice task", "Weekly Practice: build a cache.")
	g := newTestGenerator(p)

	intro, err := g.GenerateIntro(ctx, sample(2))
	require.NoError(t, err)
	assert.Equal(t, "Hello readers.", intro)

	task, err := g.GenerateTask(ctx, sample(2))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(task, "Weekly Practice"))

	g = newTestGenerator(llm.NewScripted().Fail("introduction", errors.New("x")).Fail("practice task", errors.New("y")))
	_, err = g.GenerateIntro(ctx, sample(1))
	require.Error(t, err)
	_, err = g.GenerateTask(ctx, sample(1))
	require.Error(t, err)
}

func TestParseSectionsInlineMarkers(t *testing.T) {
	sec := parseSections("Title: Inline Title\nExcerpt: short.\nContent: first line\nsecond line\nTags: a, b\nSource: http://x")
	assert.Equal(t, "Inline Title", sec.title)
	assert.Equal(t, "short.", sec.excerpt)
	assert.Equal(t, "first line\nsecond line", sec.content)
	assert.Equal(t, []string{"a", "b"}, sec.tags)
}
