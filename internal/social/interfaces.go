package social

import (
	"context"
	"errors"
)

// ErrEndOfFeed signals a feed has no more items.
var ErrEndOfFeed = errors.New("end of feed")

// PostFeed yields posts newest-first. Next returns ErrEndOfFeed once the
// upstream listing is exhausted; any other error terminates the feed.
type PostFeed interface {
	Next(ctx context.Context) (Post, error)
}

// ReplyFeed yields replies newest-first.
type ReplyFeed interface {
	Next(ctx context.Context) (Reply, error)
}

// Source enumerates content for watched users and communities. All feeds
// are lazy: pagination happens inside Next.
type Source interface {
	UserPosts(username string) PostFeed
	UserReplies(username string) ReplyFeed
	CommunityPosts(community string) PostFeed
	// PostReplies materializes the full reply tree of a post, including
	// continuation stubs, before returning.
	PostReplies(ctx context.Context, post Post) ([]Reply, error)
}

// TweetFeed yields a user's timeline newest-first in pages.
type TweetFeed interface {
	Next(ctx context.Context) (Tweet, error)
}

// TimelineSource resolves users and enumerates their tweets.
type TimelineSource interface {
	Users(ctx context.Context, usernames []string) ([]TwitterUser, error)
	UserTweets(user TwitterUser) TweetFeed
}
