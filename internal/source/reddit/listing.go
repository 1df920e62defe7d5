package reddit

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/social-harvester/internal/social"
)

// Listing wire format. Children hold typed things: t3 = post, t1 = comment,
// more = continuation stub.
type listing struct {
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

const (
	kindPost    = "t3"
	kindComment = "t1"
	kindMore    = "more"

	postFullnamePrefix = "t3_"
)

type postData struct {
	ID             string  `json:"id"`
	Subreddit      string  `json:"subreddit"`
	Author         string  `json:"author"`
	AuthorFullname string  `json:"author_fullname"`
	Title          string  `json:"title"`
	Selftext       string  `json:"selftext"`
	Permalink      string  `json:"permalink"`
	CreatedUTC     float64 `json:"created_utc"`
}

type commentData struct {
	ID             string          `json:"id"`
	LinkID         string          `json:"link_id"`
	Subreddit      string          `json:"subreddit"`
	Author         string          `json:"author"`
	AuthorFullname string          `json:"author_fullname"`
	Body           string          `json:"body"`
	Permalink      string          `json:"permalink"`
	CreatedUTC     float64         `json:"created_utc"`
	Replies        json.RawMessage `json:"replies"`
}

type moreData struct {
	Children []string `json:"children"`
}

// makeAuthor maps the wire author fields onto the Author sum type. Deleted
// accounts come through as "[deleted]"; existing accounts occasionally lack
// a fullname.
func makeAuthor(name, fullname string) social.Author {
	if name == "" || name == "[deleted]" {
		return social.Author{Presence: social.AuthorAbsent}
	}
	if fullname == "" {
		return social.Author{Presence: social.AuthorNameOnly, Name: name}
	}
	return social.Author{Presence: social.AuthorPresent, Name: name, ID: fullname}
}

func (d postData) toPost() social.Post {
	return social.Post{
		ID:         d.ID,
		Community:  d.Subreddit,
		Author:     makeAuthor(d.Author, d.AuthorFullname),
		Title:      d.Title,
		Body:       d.Selftext,
		Permalink:  d.Permalink,
		CreatedUTC: int64(d.CreatedUTC),
	}
}

func (d commentData) toReply() social.Reply {
	return social.Reply{
		ID:           d.ID,
		ParentPostID: strings.TrimPrefix(d.LinkID, postFullnamePrefix),
		Community:    d.Subreddit,
		Author:       makeAuthor(d.Author, d.AuthorFullname),
		Body:         d.Body,
		Permalink:    d.Permalink,
		CreatedUTC:   int64(d.CreatedUTC),
	}
}

// postFeed pages through a post listing lazily.
type postFeed struct {
	client *Client
	path   string
	query  url.Values
	after  string
	buf    []social.Post
	done   bool
}

func (f *postFeed) Next(ctx context.Context) (social.Post, error) {
	for len(f.buf) == 0 {
		if f.done {
			return social.Post{}, social.ErrEndOfFeed
		}
		if err := f.fetch(ctx); err != nil {
			return social.Post{}, err
		}
	}
	p := f.buf[0]
	f.buf = f.buf[1:]
	return p, nil
}

func (f *postFeed) fetch(ctx context.Context) error {
	var page listing
	if err := f.client.getJSON(ctx, f.path, pageQuery(f.query, f.client.cfg.PageSize, f.after), &page); err != nil {
		return err
	}
	for _, child := range page.Data.Children {
		if child.Kind != kindPost {
			continue
		}
		var d postData
		if err := json.Unmarshal(child.Data, &d); err != nil {
			return err
		}
		f.buf = append(f.buf, d.toPost())
	}
	f.after = page.Data.After
	if f.after == "" || len(page.Data.Children) == 0 {
		f.done = true
	}
	return nil
}

// replyFeed pages through a comment listing lazily.
type replyFeed struct {
	client *Client
	path   string
	query  url.Values
	after  string
	buf    []social.Reply
	done   bool
}

func (f *replyFeed) Next(ctx context.Context) (social.Reply, error) {
	for len(f.buf) == 0 {
		if f.done {
			return social.Reply{}, social.ErrEndOfFeed
		}
		if err := f.fetch(ctx); err != nil {
			return social.Reply{}, err
		}
	}
	r := f.buf[0]
	f.buf = f.buf[1:]
	return r, nil
}

func (f *replyFeed) fetch(ctx context.Context) error {
	var page listing
	if err := f.client.getJSON(ctx, f.path, pageQuery(f.query, f.client.cfg.PageSize, f.after), &page); err != nil {
		return err
	}
	for _, child := range page.Data.Children {
		if child.Kind != kindComment {
			continue
		}
		var d commentData
		if err := json.Unmarshal(child.Data, &d); err != nil {
			return err
		}
		f.buf = append(f.buf, d.toReply())
	}
	f.after = page.Data.After
	if f.after == "" || len(page.Data.Children) == 0 {
		f.done = true
	}
	return nil
}

func pageQuery(base url.Values, pageSize int, after string) url.Values {
	q := url.Values{}
	for k, vs := range base {
		q[k] = vs
	}
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("raw_json", "1")
	if after != "" {
		q.Set("after", after)
	}
	return q
}
