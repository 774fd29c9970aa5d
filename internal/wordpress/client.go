// Package wordpress publishes posts through the WordPress REST API.
package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lemara98/post-automation/internal/logger"
)

// ErrTokenExpired means the configured JWT can no longer authenticate.
var ErrTokenExpired = errors.New("wordpress jwt token expired")

// Auth holds either a JWT bearer token or a username and application
// password. The token wins when both are set.
type Auth struct {
	Username string
	Password string
	JWT      string
}

type Post struct {
	Title      string
	Content    string
	Status     string
	Excerpt    string
	Tags       []string
	Categories []string
}

type CreatedPost struct {
	ID   int64
	Link string
}

// APIError is a non-2xx response from WordPress.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TermID int64 `json:"term_id"`
	} `json:"data"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("wordpress: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("wordpress: status %d", e.Status)
}

type Client struct {
	api        string
	authHeader string
	http       *http.Client
}

// New builds a client for the site at baseURL. An expired JWT is rejected
// up front.
func New(baseURL string, auth Auth, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("wordpress: base url is required")
	}
	c := &Client{
		api:  strings.TrimRight(baseURL, "/") + "/wp-json/wp/v2",
		http: &http.Client{Timeout: timeout},
	}
	switch {
	case auth.JWT != "":
		if err := CheckToken(auth.JWT, time.Now()); err != nil {
			return nil, err
		}
		c.authHeader = "Bearer " + auth.JWT
	case auth.Username != "":
		creds := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
		c.authHeader = "Basic " + creds
	}
	return c, nil
}

// CheckToken reports ErrTokenExpired if token carries an exp claim before
// now. Tokens that are not JWTs are passed through unchecked.
func CheckToken(token string, now time.Time) error {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		logger.Debug("wordpress token is not a jwt, skipping expiry check", "error", err)
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !exp.After(now) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.UTC().Format(time.RFC3339))
	}
	if left := exp.Sub(now); left < 7*24*time.Hour {
		logger.Warn("wordpress jwt token expires soon", "expires_at", exp.UTC(), "remaining", left.Round(time.Hour))
	}
	return nil
}

// CreatePost resolves tags and categories by name, then creates the post.
// A term that cannot be resolved is logged and left off the post.
func (c *Client) CreatePost(ctx context.Context, p Post) (*CreatedPost, error) {
	status := p.Status
	if status == "" {
		status = "draft"
	}
	body := map[string]any{
		"title":   p.Title,
		"content": p.Content,
		"status":  status,
		"excerpt": p.Excerpt,
	}
	if ids := c.resolveTerms(ctx, "tags", p.Tags); len(ids) > 0 {
		body["tags"] = ids
	}
	if ids := c.resolveTerms(ctx, "categories", p.Categories); len(ids) > 0 {
		body["categories"] = ids
	}

	var out struct {
		ID   int64  `json:"id"`
		Link string `json:"link"`
	}
	if err := c.do(ctx, http.MethodPost, "/posts", nil, body, &out); err != nil {
		return nil, fmt.Errorf("create post %q: %w", p.Title, err)
	}
	if out.ID == 0 {
		return nil, fmt.Errorf("create post %q: response has no id", p.Title)
	}
	logger.Info("wordpress post created", "id", out.ID, "link", out.Link, "status", status)
	return &CreatedPost{ID: out.ID, Link: out.Link}, nil
}

// Ping checks that the API answers with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	var posts []json.RawMessage
	q := url.Values{"per_page": {"1"}}
	if err := c.do(ctx, http.MethodGet, "/posts", q, nil, &posts); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (c *Client) resolveTerms(ctx context.Context, kind string, names []string) []int64 {
	var ids []int64
	seen := map[int64]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, err := c.termID(ctx, kind, name)
		if err != nil {
			logger.Warn("wordpress term skipped", "kind", kind, "name", name, "error", err)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

type term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// termID finds a term whose name matches case-insensitively, creating it
// when none does.
func (c *Client) termID(ctx context.Context, kind, name string) (int64, error) {
	var found []term
	q := url.Values{"search": {name}, "per_page": {"100"}}
	if err := c.do(ctx, http.MethodGet, "/"+kind, q, nil, &found); err != nil {
		return 0, fmt.Errorf("search %s: %w", kind, err)
	}
	for _, t := range found {
		if strings.EqualFold(html.UnescapeString(t.Name), name) {
			return t.ID, nil
		}
	}

	var created term
	err := c.do(ctx, http.MethodPost, "/"+kind, nil, map[string]string{"name": name}, &created)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "term_exists" && apiErr.Data.TermID != 0 {
		return apiErr.Data.TermID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", kind, err)
	}
	return created.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.api + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
