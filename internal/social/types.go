// Package social defines core content types shared across subsystems.
package social

// EntityKind distinguishes the two kinds of watched entities.
type EntityKind string

// Watched entity kinds.
const (
	KindUser      EntityKind = "user"
	KindCommunity EntityKind = "community"
)

// WatchedEntity identifies one account or community on the watch-list.
type WatchedEntity struct {
	Name string
	Kind EntityKind
}

// AuthorPresence classifies how much author data a source item carried.
type AuthorPresence int

// Author presence states. Accounts get deleted, and occasionally an
// existing account resolves with a name but no stable id.
const (
	AuthorAbsent AuthorPresence = iota
	AuthorPresent
	AuthorNameOnly
)

// Author carries optional author identity for a content item.
type Author struct {
	Presence AuthorPresence
	Name     string
	ID       string
}

// Post is a top-level submission inside a community.
type Post struct {
	ID         string
	Community  string
	Author     Author
	Title      string
	Body       string
	Permalink  string
	CreatedUTC int64
}

// HasText reports whether the post carries self text. Link-only and
// media-only posts have an empty body.
func (p Post) HasText() bool {
	return p.Body != ""
}

// Reply is a comment attached to a post.
type Reply struct {
	ID           string
	ParentPostID string
	Community    string
	Author       Author
	Body         string
	Permalink    string
	CreatedUTC   int64
}

// TwitterUser is a resolved timeline owner.
type TwitterUser struct {
	ID       string
	Username string
	Name     string
}

// Tweet is one timeline entry.
type Tweet struct {
	ID         string
	Text       string
	CreatedUTC int64
}
