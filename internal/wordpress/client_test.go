package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWP is an in-memory stand-in for the wp/v2 endpoints the client uses.
type fakeWP struct {
	mu       sync.Mutex
	terms    map[string][]term
	nextID   int64
	posts    []map[string]any
	auth     []string
	failTerm string
	racyTerm string
}

func newFakeWP() *fakeWP {
	return &fakeWP{terms: map[string][]term{
		"tags":       {{ID: 5, Name: "Go"}, {ID: 6, Name: "Golang tips"}},
		"categories": {{ID: 9, Name: "DevOps &amp; Cloud"}},
	}, nextID: 100}
}

func (f *fakeWP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/wp-json/wp/v2/")
	switch {
	case path == "posts" && r.Method == http.MethodGet:
		w.Write([]byte(`[]`))
	case path == "posts" && r.Method == http.MethodPost:
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.posts = append(f.posts, body)
		json.NewEncoder(w).Encode(map[string]any{"id": 42, "link": "https://blog.example/p/42"})
	case (path == "tags" || path == "categories") && r.Method == http.MethodGet:
		q := strings.ToLower(r.URL.Query().Get("search"))
		var out []term
		for _, t := range f.terms[path] {
			if strings.Contains(strings.ToLower(html.UnescapeString(t.Name)), q) {
				out = append(out, t)
			}
		}
		if out == nil {
			out = []term{}
		}
		json.NewEncoder(w).Encode(out)
	case (path == "tags" || path == "categories") && r.Method == http.MethodPost:
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		name := body["name"]
		if name == f.failTerm {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"code":"db_error","message":"boom"}`))
			return
		}
		if name == f.racyTerm {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":"term_exists","message":"exists","data":{"status":400,"term_id":77}}`))
			return
		}
		f.nextID++
		t := term{ID: f.nextID, Name: name}
		f.terms[path] = append(f.terms[path], t)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(t)
	default:
		http.NotFound(w, r)
	}
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestCreatePostResolvesTerms(t *testing.T) {
	wp := newFakeWP()
	srv := httptest.NewServer(wp)
	defer srv.Close()

	c, err := New(srv.URL+"/", Auth{Username: "bot", Password: "app pass"}, 5*time.Second)
	require.NoError(t, err)

	got, err := c.CreatePost(context.Background(), Post{
		Title:      "Hello",
		Content:    "<p>body</p>",
		Status:     "draft",
		Excerpt:    "short",
		Tags:       []string{"go", "Kubernetes", " ", "GO"},
		Categories: []string{"DevOps & Cloud"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "https://blog.example/p/42", got.Link)

	require.Len(t, wp.posts, 1)
	post := wp.posts[0]
	assert.Equal(t, "Hello", post["title"])
	assert.Equal(t, "draft", post["status"])
	assert.Equal(t, []any{float64(5), float64(101)}, post["tags"], "exact case-insensitive match, new tag created, duplicate dropped")
	assert.Equal(t, []any{float64(9)}, post["categories"])

	for _, a := range wp.auth {
		assert.True(t, strings.HasPrefix(a, "Basic "), a)
	}
}

func TestCreatePostSkipsFailedTerms(t *testing.T) {
	wp := newFakeWP()
	wp.failTerm = "broken"
	wp.racyTerm = "raced"
	srv := httptest.NewServer(wp)
	defer srv.Close()

	c, err := New(srv.URL, Auth{}, 5*time.Second)
	require.NoError(t, err)

	_, err = c.CreatePost(context.Background(), Post{Title: "T", Tags: []string{"broken", "raced"}})
	require.NoError(t, err)
	require.Len(t, wp.posts, 1)
	assert.Equal(t, []any{float64(77)}, wp.posts[0]["tags"])
	assert.Equal(t, "draft", wp.posts[0]["status"], "empty status defaults to draft")
}

func TestCreatePostError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"rest_cannot_create","message":"Sorry"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, Auth{Username: "u", Password: "p"}, 5*time.Second)
	require.NoError(t, err)
	_, err = c.CreatePost(context.Background(), Post{Title: "T"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "err = %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "rest_cannot_create", apiErr.Code)
}

func TestBearerTokenAndPing(t *testing.T) {
	wp := newFakeWP()
	srv := httptest.NewServer(wp)
	defer srv.Close()

	tok := signed(t, time.Now().Add(30*24*time.Hour))
	c, err := New(srv.URL, Auth{JWT: tok, Username: "ignored"}, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, c.Ping(context.Background()))
	require.Len(t, wp.auth, 1)
	assert.Equal(t, "Bearer "+tok, wp.auth[0])
}

func TestNewRejectsExpiredToken(t *testing.T) {
	_, err := New("https://blog.example", Auth{JWT: signed(t, time.Now().Add(-time.Hour))}, time.Second)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestCheckToken(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, CheckToken("opaque-app-token", now))
	assert.NoError(t, CheckToken(signed(t, now.Add(time.Hour)), now))
	assert.ErrorIs(t, CheckToken(signed(t, now.Add(-time.Second)), now), ErrTokenExpired)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New("", Auth{}, time.Second)
	require.Error(t, err)
}
