// Package twitter implements the timeline source for watched twitter
// accounts using the v2 API.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/social-harvester/internal/social"
)

const (
	defaultBaseURL  = "https://api.twitter.com"
	defaultPageSize = 100
	defaultTimeout  = 30 * time.Second
)

// Config carries credentials and endpoints for the twitter API.
type Config struct {
	BearerToken string
	// BaseURL is overridable for tests.
	BaseURL  string
	PageSize int
	Timeout  time.Duration
}

// Client is a minimal twitter v2 client: user lookup plus paginated
// timelines, newest-first.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
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

type userRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type usersResponse struct {
	Data []userRecord `json:"data"`
}

// Users resolves usernames to timeline owners. Unknown usernames are simply
// missing from the result.
func (c *Client) Users(ctx context.Context, usernames []string) ([]social.TwitterUser, error) {
	query := url.Values{"usernames": {strings.Join(usernames, ",")}}
	var resp usersResponse
	if err := c.getJSON(ctx, "/2/users/by", query, &resp); err != nil {
		return nil, fmt.Errorf("look up users: %w", err)
	}
	users := make([]social.TwitterUser, 0, len(resp.Data))
	for _, u := range resp.Data {
		users = append(users, social.TwitterUser{ID: u.ID, Username: u.Username, Name: u.Name})
	}
	c.logger.Debug("resolved twitter users",
		zap.Int("requested", len(usernames)),
		zap.Int("resolved", len(users)),
	)
	return users, nil
}

// UserTweets returns the lazy newest-first feed of a user's timeline.
func (c *Client) UserTweets(user social.TwitterUser) social.TweetFeed {
	return &tweetFeed{client: c, user: user}
}

type tweetRecord struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type timelineResponse struct {
	Data []tweetRecord `json:"data"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

type tweetFeed struct {
	client    *Client
	user      social.TwitterUser
	nextToken string
	buf       []social.Tweet
	done      bool
}

func (f *tweetFeed) Next(ctx context.Context) (social.Tweet, error) {
	for len(f.buf) == 0 {
		if f.done {
			return social.Tweet{}, social.ErrEndOfFeed
		}
		if err := f.fetch(ctx); err != nil {
			return social.Tweet{}, err
		}
	}
	t := f.buf[0]
	f.buf = f.buf[1:]
	return t, nil
}

func (f *tweetFeed) fetch(ctx context.Context) error {
	query := url.Values{
		"max_results":  {strconv.Itoa(f.client.cfg.PageSize)},
		"tweet.fields": {"created_at"},
	}
	if f.nextToken != "" {
		query.Set("pagination_token", f.nextToken)
	}
	var resp timelineResponse
	path := fmt.Sprintf("/2/users/%s/tweets", url.PathEscape(f.user.ID))
	if err := f.client.getJSON(ctx, path, query, &resp); err != nil {
		return fmt.Errorf("list tweets for %s: %w", f.user.Username, err)
	}
	for _, t := range resp.Data {
		f.buf = append(f.buf, social.Tweet{
			ID:         t.ID,
			Text:       t.Text,
			CreatedUTC: t.CreatedAt.Unix(),
		})
	}
	f.nextToken = resp.Meta.NextToken
	if f.nextToken == "" || len(resp.Data) == 0 {
		f.done = true
	}
	f.client.logger.Debug("fetched timeline page",
		zap.String("username", f.user.Username),
		zap.Int("tweets", len(resp.Data)),
		zap.Bool("last_page", f.done),
	)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

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
