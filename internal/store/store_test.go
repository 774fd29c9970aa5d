package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func int64p(v int64) *int64 { return &v }
func strp(v string) *string { return &v }
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presswire.db")
	s, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s.Close()

	s, err = Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()

	versions, err := s.Migrations(context.Background())
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if len(versions) != 1 || versions[0] != "001_init.sql" {
		t.Errorf("versions = %v, want [001_init.sql]", versions)
	}
}

// --- Ledger ---

func TestRecordArticleUpsertKeepsFirstTitle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.RecordArticle(ctx, LedgerRecord{
		Title:           "First title",
		SourceURL:       "http://x/1",
		WordPressPostID: int64p(10),
		WordPressURL:    strp("https://blog/first"),
		SourceName:      "Feed A",
		Tags:            []string{"go", "db"},
	})
	if err != nil {
		t.Fatalf("record 1: %v", err)
	}
	id2, err := s.RecordArticle(ctx, LedgerRecord{
		Title:           "Second title",
		SourceURL:       "http://x/1",
		WordPressPostID: int64p(20),
		WordPressURL:    strp("https://blog/second"),
		SourceName:      "Feed B",
	})
	if err != nil {
		t.Fatalf("record 2: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}

	n, err := s.CountArticles(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}

	got, err := s.GetArticleByURL(ctx, "http://x/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "First title" {
		t.Errorf("title = %q, want %q", got.Title, "First title")
	}
	if got.WordPressPostID == nil || *got.WordPressPostID != 20 {
		t.Errorf("post id = %v, want 20", got.WordPressPostID)
	}
	if got.BestURL() != "https://blog/second" {
		t.Errorf("best url = %q", got.BestURL())
	}
	if got.SourceName != "Feed A" {
		t.Errorf("source = %q, want Feed A", got.SourceName)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestRecordArticleRejectsEmptyURL(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.RecordArticle(context.Background(), LedgerRecord{Title: "x"}); err == nil {
		t.Fatal("expected error")
	}
	n, _ := s.CountArticles(context.Background())
	if n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

func TestRecordArticleFailureLeavesLedgerUnchanged(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RecordArticle(ctx, LedgerRecord{Title: "x", SourceURL: "http://x/1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !strings.HasPrefix(err.Error(), "http://x/1: ") {
		t.Errorf("err = %q, want it to start with the source url", err)
	}
	ok, err := s.ArticleExists(context.Background(), "http://x/1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Error("failed record left a ledger entry")
	}
}

func TestArticleExists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok, err := s.ArticleExists(ctx, "http://x/1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatal("exists before record")
	}
	if _, err := s.RecordArticle(ctx, LedgerRecord{Title: "t", SourceURL: "http://x/1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	for i := 0; i < 2; i++ {
		ok, err = s.ArticleExists(ctx, "http://x/1")
		if err != nil {
			t.Fatalf("exists: %v", err)
		}
		if !ok {
			t.Fatalf("call %d: exists = false after record", i)
		}
	}
}

func TestGetArticleByURLNotFound(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetArticleByURL(context.Background(), "http://missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestRecentArticles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.SetClock(fixedClock(now))

	recs := []LedgerRecord{
		{Title: "old", SourceURL: "http://x/old", PublishedAt: now.Add(-8 * 24 * time.Hour)},
		{Title: "mid", SourceURL: "http://x/mid", PublishedAt: now.Add(-3 * 24 * time.Hour)},
		{Title: "new", SourceURL: "http://x/new", PublishedAt: now.Add(-time.Hour)},
	}
	for _, r := range recs {
		if _, err := s.RecordArticle(ctx, r); err != nil {
			t.Fatalf("record %s: %v", r.Title, err)
		}
	}

	got, err := s.RecentArticles(ctx, 7)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Title != "new" || got[1].Title != "mid" {
		t.Errorf("order = %s, %s; want new, mid", got[0].Title, got[1].Title)
	}
	if !got[1].PublishedAt.Equal(now.Add(-3 * 24 * time.Hour)) {
		t.Errorf("published_at = %v", got[1].PublishedAt)
	}
}

func TestRecentArticlesEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.RecentArticles(context.Background(), 7)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty slice", got)
	}
}

// --- Subscribers ---

func TestAddSubscriberUpsertKeepsTokens(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.AddSubscriber(ctx, "A@X.com ", "Alice")
	if err != nil {
		t.Fatalf("add 1: %v", err)
	}
	first, err := s.GetSubscriberByEmail(ctx, "a@x.com")
	if err != nil || first == nil {
		t.Fatalf("get after add: %v %v", first, err)
	}

	id2, err := s.AddSubscriber(ctx, "a@x.com", "Alicia")
	if err != nil {
		t.Fatalf("add 2: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}

	all, err := s.ListSubscribers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("rows = %d, want 1", len(all))
	}
	got := all[0]
	if got.Name != "Alicia" {
		t.Errorf("name = %q, want Alicia", got.Name)
	}
	if got.ConfirmationToken != first.ConfirmationToken || got.UnsubscribeToken != first.UnsubscribeToken {
		t.Error("tokens changed on re-subscribe")
	}
	if got.ConfirmationToken == got.UnsubscribeToken {
		t.Error("confirmation and unsubscribe tokens are equal")
	}
	if got.Confirmed || !got.Active {
		t.Errorf("state = confirmed:%v active:%v, want false/true", got.Confirmed, got.Active)
	}
}

func TestAddSubscriberExplicitTokens(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.AddSubscriber(ctx, "b@x.com", "", SubscriberTokens{Confirmation: "c-tok", Unsubscribe: "u-tok"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := s.GetSubscriberByEmail(ctx, "b@x.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ConfirmationToken != "c-tok" || got.UnsubscribeToken != "u-tok" {
		t.Errorf("tokens = %q/%q", got.ConfirmationToken, got.UnsubscribeToken)
	}
	if got.Name != "" {
		t.Errorf("name = %q, want empty", got.Name)
	}
}

func TestAddSubscriberTokenCollisionLeavesRegistryUnchanged(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.AddSubscriber(ctx, "a@x.com", "", SubscriberTokens{Confirmation: "c1", Unsubscribe: "u1"}); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := s.AddSubscriber(ctx, "b@x.com", "", SubscriberTokens{Confirmation: "c2", Unsubscribe: "u1"}); err == nil {
		t.Fatal("expected error for reused unsubscribe token")
	}
	got, err := s.GetSubscriberByEmail(ctx, "b@x.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want no row", got)
	}
	all, err := s.ListSubscribers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].UnsubscribeToken != "u1" {
		t.Errorf("registry changed: %d rows", len(all))
	}
}

func TestConfirmSubscriberIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.AddSubscriber(ctx, "a@x.com", "", SubscriberTokens{Confirmation: "c1", Unsubscribe: "u1"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	for i := 0; i < 2; i++ {
		ok, err := s.ConfirmSubscriber(ctx, "c1")
		if err != nil {
			t.Fatalf("confirm %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("confirm %d returned false", i)
		}
	}
	got, _ := s.GetSubscriberByEmail(ctx, "a@x.com")
	if !got.Confirmed {
		t.Error("confirmed = false after confirm")
	}
}

func TestConfirmUnknownTokenMutatesNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.AddSubscriber(ctx, "a@x.com", "", SubscriberTokens{Confirmation: "c1", Unsubscribe: "u1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	ok, err := s.ConfirmSubscriber(ctx, "nope")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if ok {
		t.Error("confirm unknown token returned true")
	}
	ok, err = s.Unsubscribe(ctx, "nope")
	if err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if ok {
		t.Error("unsubscribe unknown token returned true")
	}
	got, _ := s.GetSubscriberByEmail(ctx, "a@x.com")
	if got.Confirmed || !got.Active {
		t.Errorf("state changed: confirmed:%v active:%v", got.Confirmed, got.Active)
	}
}

func TestActiveSubscribersFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	add := func(email, c, u string) {
		t.Helper()
		if _, err := s.AddSubscriber(ctx, email, "", SubscriberTokens{Confirmation: c, Unsubscribe: u}); err != nil {
			t.Fatalf("add %s: %v", email, err)
		}
	}
	add("active@x.com", "c-a", "u-a")
	add("unsub@x.com", "c-b", "u-b")
	add("pending@x.com", "c-c", "u-c")

	for _, tok := range []string{"c-a", "c-b"} {
		if _, err := s.ConfirmSubscriber(ctx, tok); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}
	if _, err := s.Unsubscribe(ctx, "u-b"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	got, err := s.ActiveSubscribers(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(got) != 1 || got[0].Email != "active@x.com" {
		t.Fatalf("active = %v, want [active@x.com]", emails(got))
	}

	c, err := s.CountSubscribers(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if c.Total != 3 || c.Active != 1 || c.Unconfirmed != 1 {
		t.Errorf("counts = %+v", c)
	}
}

func TestSubscriberLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AddSubscriber(ctx, "a@x.com", "A"); err != nil {
		t.Fatalf("add: %v", err)
	}
	sub, _ := s.GetSubscriberByEmail(ctx, "a@x.com")

	active, _ := s.ActiveSubscribers(ctx)
	if len(active) != 0 {
		t.Fatalf("unconfirmed subscriber is active")
	}

	if ok, err := s.ConfirmSubscriber(ctx, sub.ConfirmationToken); err != nil || !ok {
		t.Fatalf("confirm: %v %v", ok, err)
	}
	active, _ = s.ActiveSubscribers(ctx)
	if len(active) != 1 || active[0].Email != "a@x.com" {
		t.Fatalf("after confirm active = %v", emails(active))
	}

	if ok, err := s.Unsubscribe(ctx, sub.UnsubscribeToken); err != nil || !ok {
		t.Fatalf("unsubscribe: %v %v", ok, err)
	}
	active, _ = s.ActiveSubscribers(ctx)
	if len(active) != 0 {
		t.Fatalf("after unsubscribe active = %v", emails(active))
	}
}

func TestGenerateToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := GenerateToken()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(tok) != 43 {
			t.Errorf("len = %d, want 43", len(tok))
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func emails(subs []*Subscriber) []string {
	var out []string
	for _, s := range subs {
		out = append(out, s.Email)
	}
	return out
}

// --- Social queue ---

func TestSocialQueue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	s.SetClock(fixedClock(base))
	artID, err := s.RecordArticle(ctx, LedgerRecord{Title: "Post", SourceURL: "http://x/1", WordPressURL: strp("https://blog/p")})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	first, err := s.EnqueueSocialPost(ctx, artID, "first")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	s.SetClock(fixedClock(base.Add(time.Minute)))
	if _, err := s.EnqueueSocialPost(ctx, 9999, "dangling"); err != nil {
		t.Fatalf("enqueue dangling: %v", err)
	}

	pending, err := s.PendingSocialPosts(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Content != "dangling" || pending[0].ArticleTitle != "" {
		t.Errorf("newest = %+v", pending[0])
	}
	if pending[1].ArticleTitle != "Post" || pending[1].ArticleURL != "https://blog/p" {
		t.Errorf("joined = %+v", pending[1])
	}

	ok, err := s.MarkSocialPostPosted(ctx, first)
	if err != nil || !ok {
		t.Fatalf("mark: %v %v", ok, err)
	}
	ok, err = s.MarkSocialPostPosted(ctx, first)
	if err != nil {
		t.Fatalf("mark again: %v", err)
	}
	if ok {
		t.Error("second mark returned true")
	}

	pending, _ = s.PendingSocialPosts(ctx, 0)
	if len(pending) != 1 || pending[0].Content != "dangling" {
		t.Fatalf("pending after mark = %+v", pending)
	}
}

// --- Send history ---

func TestRecordSend(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.SetClock(fixedClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)))

	if _, err := s.RecordSend(ctx, "Week 1", []int64{3, 1}, 5, 4); err != nil {
		t.Fatalf("record send: %v", err)
	}
	s.SetClock(fixedClock(time.Date(2026, 3, 17, 12, 0, 0, 0, time.UTC)))
	if _, err := s.RecordSend(ctx, "Week 2", nil, 2, 2); err != nil {
		t.Fatalf("record send: %v", err)
	}

	sends, err := s.RecentSends(ctx, 5)
	if err != nil {
		t.Fatalf("recent sends: %v", err)
	}
	if len(sends) != 2 {
		t.Fatalf("sends = %d, want 2", len(sends))
	}
	if sends[0].Subject != "Week 2" || len(sends[0].ArticleIDs) != 0 {
		t.Errorf("newest = %+v", sends[0])
	}
	if sends[1].RecipientCount != 5 || sends[1].SentCount != 4 {
		t.Errorf("counts = %d/%d", sends[1].RecipientCount, sends[1].SentCount)
	}
	if len(sends[1].ArticleIDs) != 2 || sends[1].ArticleIDs[0] != 3 {
		t.Errorf("article ids = %v", sends[1].ArticleIDs)
	}
}
