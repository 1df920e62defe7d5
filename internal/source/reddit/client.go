// Package reddit implements the upstream content source for watched reddit
// users and subreddits using the public JSON API.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/social-harvester/internal/social"
)

const (
	defaultBaseURL  = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
	defaultPageSize = 100
	defaultTimeout  = 30 * time.Second

	// tokenExpirySlack refreshes the OAuth token slightly before the
	// server-side expiry.
	tokenExpirySlack = time.Minute
)

// Config carries credentials and endpoints for the reddit API.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	// BaseURL and TokenURL are overridable for tests.
	BaseURL  string
	TokenURL string
	PageSize int
	Timeout  time.Duration
}

// Client is a minimal reddit API client: app-only OAuth plus the listing
// endpoints the harvester needs. All listings page newest-first.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New builds a Client. Missing config fields fall back to API defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// UserPosts returns the lazy newest-first feed of a user's posts.
func (c *Client) UserPosts(username string) social.PostFeed {
	return &postFeed{
		client: c,
		path:   fmt.Sprintf("/user/%s/submitted", url.PathEscape(username)),
		query:  url.Values{"sort": {"new"}},
	}
}

// UserReplies returns the lazy newest-first feed of a user's comments.
func (c *Client) UserReplies(username string) social.ReplyFeed {
	return &replyFeed{
		client: c,
		path:   fmt.Sprintf("/user/%s/comments", url.PathEscape(username)),
		query:  url.Values{"sort": {"new"}},
	}
}

// CommunityPosts returns the lazy newest-first feed of a subreddit's posts.
func (c *Client) CommunityPosts(community string) social.PostFeed {
	return &postFeed{
		client: c,
		path:   fmt.Sprintf("/r/%s/new", url.PathEscape(community)),
	}
}

// token management

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request token: unexpected status %d", resp.StatusCode)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}
	c.token = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpirySlack)
	c.logger.Debug("refreshed reddit api token", zap.Time("expires", c.tokenExpiry))
	return c.token, nil
}

// getJSON performs an authenticated GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return err
	}

	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
