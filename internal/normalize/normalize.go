// Package normalize maps raw content items into index-ready documents.
package normalize

import (
	"fmt"
	"time"

	"github.com/JakeFAU/social-harvester/internal/social"
)

const (
	redditDomain  = "https://www.reddit.com"
	twitterDomain = "https://twitter.com"

	// titleExcerptLen bounds the synthesized title excerpt for replies
	// and tweets.
	titleExcerptLen = 50
)

// Document is the canonical record stored in the search index. The id is a
// deterministic function of source, community and item id, so re-indexing
// the same logical item overwrites rather than duplicates.
type Document struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	BodyContent    string    `json:"body_content"`
	URL            string    `json:"url"`
	AdditionalURLs string    `json:"additional_urls"`
	URLScheme      string    `json:"url_scheme"`
	Domains        []string  `json:"domains"`
	CreatedAt      time.Time `json:"created_at"`
	DataType       string    `json:"data_type"`
	ParentPostID   string    `json:"parent_post_id,omitempty"`
	AuthorName     string    `json:"author_name,omitempty"`
	AuthorID       string    `json:"author_id,omitempty"`
}

// Post builds a document for a top-level post. The second return value is
// false when the post carries no self text and must not be indexed.
func Post(p social.Post) (Document, bool) {
	if !p.HasText() {
		return Document{}, false
	}
	url := redditDomain + p.Permalink
	doc := Document{
		ID:             fmt.Sprintf("reddit-%s-%s", p.Community, p.ID),
		Title:          p.Title,
		BodyContent:    p.Body,
		URL:            url,
		AdditionalURLs: url,
		URLScheme:      "https",
		Domains:        []string{redditDomain},
		CreatedAt:      time.Unix(p.CreatedUTC, 0).UTC(),
		DataType:       "post",
	}
	attachAuthor(&doc, p.Author)
	return doc, true
}

// Reply builds a document for a comment. Replies always index; the title is
// synthesized from the author and the leading body text.
func Reply(r social.Reply) Document {
	url := redditDomain + r.Permalink
	doc := Document{
		ID:             fmt.Sprintf("reddit-%s-%s", r.Community, r.ID),
		Title:          excerptTitle(authorLabel(r.Author), "Reddit", r.Body),
		BodyContent:    r.Body,
		URL:            url,
		AdditionalURLs: url,
		URLScheme:      "https",
		Domains:        []string{redditDomain},
		CreatedAt:      time.Unix(r.CreatedUTC, 0).UTC(),
		DataType:       "reply",
		ParentPostID:   r.ParentPostID,
	}
	attachAuthor(&doc, r.Author)
	return doc
}

// Tweet builds a document for one timeline entry.
func Tweet(user social.TwitterUser, t social.Tweet) Document {
	url := fmt.Sprintf("%s/%s/status/%s", twitterDomain, user.Username, t.ID)
	return Document{
		ID:             "tweet-" + t.ID,
		Title:          excerptTitle(user.Name, "Twitter", t.Text),
		BodyContent:    t.Text,
		URL:            url,
		AdditionalURLs: url,
		URLScheme:      "https",
		Domains:        []string{twitterDomain},
		CreatedAt:      time.Unix(t.CreatedUTC, 0).UTC(),
		DataType:       "tweet",
		AuthorName:     user.Username,
		AuthorID:       user.ID,
	}
}

// excerptTitle renders "<who> on <where> - <first 50 chars of body>", with a
// trailing ellipsis when the body was truncated. The bound counts runes, not
// bytes, so multibyte bodies are never cut mid-character.
func excerptTitle(who, where, body string) string {
	excerpt := body
	truncated := false
	if runes := []rune(body); len(runes) > titleExcerptLen {
		excerpt = string(runes[:titleExcerptLen])
		truncated = true
	}
	title := fmt.Sprintf("%s on %s - %s", who, where, excerpt)
	if truncated {
		title += "..."
	}
	return title
}

func authorLabel(a social.Author) string {
	if a.Presence == social.AuthorAbsent {
		return "[deleted]"
	}
	return a.Name
}

// attachAuthor copies author identity onto the document. Absent authors
// leave both fields empty; name-only authors get no id.
func attachAuthor(doc *Document, a social.Author) {
	switch a.Presence {
	case social.AuthorPresent:
		doc.AuthorName = a.Name
		doc.AuthorID = a.ID
	case social.AuthorNameOnly:
		doc.AuthorName = a.Name
	case social.AuthorAbsent:
	}
}
