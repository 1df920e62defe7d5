package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/social-harvester/internal/checkpoint"
	"github.com/JakeFAU/social-harvester/internal/checkpoint/memory"
	"github.com/JakeFAU/social-harvester/internal/index"
	"github.com/JakeFAU/social-harvester/internal/social"
)

type slicePostFeed struct {
	posts []social.Post
	err   error
	i     int
}

func (f *slicePostFeed) Next(context.Context) (social.Post, error) {
	if f.i >= len(f.posts) {
		if f.err != nil {
			return social.Post{}, f.err
		}
		return social.Post{}, social.ErrEndOfFeed
	}
	p := f.posts[f.i]
	f.i++
	return p, nil
}

type sliceReplyFeed struct {
	replies []social.Reply
	err     error
	i       int
}

func (f *sliceReplyFeed) Next(context.Context) (social.Reply, error) {
	if f.i >= len(f.replies) {
		if f.err != nil {
			return social.Reply{}, f.err
		}
		return social.Reply{}, social.ErrEndOfFeed
	}
	r := f.replies[f.i]
	f.i++
	return r, nil
}

// fakeSource serves canned feeds keyed by entity name.
type fakeSource struct {
	userPosts   map[string][]social.Post
	userReplies map[string][]social.Reply
	community   map[string][]social.Post
	postReplies map[string][]social.Reply
	feedErr     error
	repliesErr  error
}

func (s *fakeSource) UserPosts(username string) social.PostFeed {
	return &slicePostFeed{posts: s.userPosts[username], err: s.feedErr}
}

func (s *fakeSource) UserReplies(username string) social.ReplyFeed {
	return &sliceReplyFeed{replies: s.userReplies[username], err: s.feedErr}
}

func (s *fakeSource) CommunityPosts(community string) social.PostFeed {
	return &slicePostFeed{posts: s.community[community], err: s.feedErr}
}

func (s *fakeSource) PostReplies(_ context.Context, post social.Post) ([]social.Reply, error) {
	if s.repliesErr != nil {
		return nil, s.repliesErr
	}
	return s.postReplies[post.ID], nil
}

// flakyIndexer fails writes for selected document ids.
type flakyIndexer struct {
	*index.Memory
	mu       sync.Mutex
	failIDs  map[string]bool
	attempts map[string]int
}

func newFlakyIndexer(failIDs ...string) *flakyIndexer {
	fails := make(map[string]bool, len(failIDs))
	for _, id := range failIDs {
		fails[id] = true
	}
	return &flakyIndexer{
		Memory:   index.NewMemory(),
		failIDs:  fails,
		attempts: make(map[string]int),
	}
}

func (f *flakyIndexer) Upsert(ctx context.Context, id string, doc any) error {
	f.mu.Lock()
	f.attempts[id]++
	fail := f.failIDs[id]
	f.mu.Unlock()
	if fail {
		return fmt.Errorf("index rejected %s", id)
	}
	return f.Memory.Upsert(ctx, id, doc)
}

func (f *flakyIndexer) attemptsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[id]
}

func post(id, community string, ts int64) social.Post {
	return social.Post{
		ID:         id,
		Community:  community,
		Author:     social.Author{Presence: social.AuthorPresent, Name: "alice", ID: "t2_alice"},
		Title:      "title " + id,
		Body:       "body " + id,
		Permalink:  "/r/" + community + "/comments/" + id,
		CreatedUTC: ts,
	}
}

func newTestController(source social.Source, store checkpoint.Store, idx index.Indexer, allowed []string) *Controller {
	scope := NewScopeFilter(allowed, nil)
	return NewController(source, store, idx, scope, NewRetrier(zap.NewNop()), zap.NewNop())
}

func TestUserPostsPass_FirstRunIndexesEverything(t *testing.T) {
	t.Parallel()

	source := &fakeSource{userPosts: map[string][]social.Post{
		"alice": {
			post("p3", "golang", 3000),
			post("p2", "golang", 2000),
			post("p1", "golang", 1000),
		},
	}}
	store := memory.New()
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.UserPostsPass(context.Background(), "alice")

	require.True(t, res.Succeeded)
	require.Equal(t, StopExhausted, res.Reason)
	require.Equal(t, 3, res.Indexed)
	require.Equal(t, int64(3000), res.HighWaterMark)
	require.Equal(t, 3, idx.Len())

	cp, err := store.Read(context.Background(), checkpoint.UserPostsKey("alice"))
	require.NoError(t, err)
	require.True(t, cp.LastSucceeded)
	require.Equal(t, int64(3000), cp.LastTimestamp)
}

func TestUserPostsPass_CutoffStopsIteration(t *testing.T) {
	t.Parallel()

	// Newest-first feed: one new in-scope item, one new filtered item, then
	// the item the previous run already saw.
	source := &fakeSource{userPosts: map[string][]social.Post{
		"alice": {
			post("new", "golang", 1200),
			post("offtopic", "cooking", 1100),
			post("seen", "golang", 1000),
		},
	}}
	store := memory.New()
	key := checkpoint.UserPostsKey("alice")
	require.NoError(t, store.Write(context.Background(), checkpoint.Checkpoint{
		Key: key, LastTimestamp: 1000, LastSucceeded: true,
	}))
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.UserPostsPass(context.Background(), "alice")

	require.True(t, res.Succeeded)
	require.Equal(t, StopCutoff, res.Reason)
	require.Equal(t, 1, res.Indexed)
	require.Equal(t, int64(1200), res.HighWaterMark)
	require.Equal(t, 1, idx.Len())
	_, ok := idx.Get("reddit-golang-new")
	require.True(t, ok)

	cp, err := store.Read(context.Background(), key)
	require.NoError(t, err)
	require.True(t, cp.LastSucceeded)
	require.Equal(t, int64(1200), cp.LastTimestamp)
}

func TestUserPostsPass_FailedCheckpointDisablesCutoff(t *testing.T) {
	t.Parallel()

	source := &fakeSource{userPosts: map[string][]social.Post{
		"alice": {
			post("p2", "golang", 2000),
			post("p1", "golang", 500),
		},
	}}
	store := memory.New()
	key := checkpoint.UserPostsKey("alice")
	// Last run failed partway: the stored timestamp is not a trustworthy
	// cutoff, so the whole feed is rescanned.
	require.NoError(t, store.Write(context.Background(), checkpoint.Checkpoint{
		Key: key, LastTimestamp: 1000, LastSucceeded: false,
	}))
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.UserPostsPass(context.Background(), "alice")

	require.True(t, res.Succeeded)
	require.Equal(t, StopExhausted, res.Reason)
	require.Equal(t, 2, res.Indexed)
	require.Equal(t, int64(2000), res.HighWaterMark)
}

func TestUserPostsPass_RerunIndexesNothing(t *testing.T) {
	t.Parallel()

	source := &fakeSource{userPosts: map[string][]social.Post{
		"alice": {
			post("p2", "golang", 2000),
			post("p1", "golang", 1000),
		},
	}}
	store := memory.New()
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	first := c.UserPostsPass(context.Background(), "alice")
	require.True(t, first.Succeeded)
	require.Equal(t, 2, first.Indexed)

	second := c.UserPostsPass(context.Background(), "alice")
	require.True(t, second.Succeeded)
	require.Equal(t, StopCutoff, second.Reason)
	require.Zero(t, second.Indexed)
	require.Equal(t, int64(2000), second.HighWaterMark)
}

func TestUserPostsPass_TextlessPostsDoNotAdvanceMark(t *testing.T) {
	t.Parallel()

	linkOnly := post("link", "golang", 3000)
	linkOnly.Body = ""
	source := &fakeSource{userPosts: map[string][]social.Post{
		"alice": {linkOnly, post("p1", "golang", 2000)},
	}}
	store := memory.New()
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.UserPostsPass(context.Background(), "alice")

	require.True(t, res.Succeeded)
	require.Equal(t, 1, res.Indexed)
	// The skipped link post's newer timestamp must not be recorded, or a
	// later edit adding self text would never be picked up.
	require.Equal(t, int64(2000), res.HighWaterMark)
	_, ok := idx.Get("reddit-golang-link")
	require.False(t, ok)
}

func TestUserPostsPass_ExhaustedUpsertFailStops(t *testing.T) {
	t.Parallel()

	source := &fakeSource{userPosts: map[string][]social.Post{
		"alice": {
			post("ok", "golang", 3000),
			post("bad", "golang", 2000),
			post("unreached", "golang", 1000),
		},
	}}
	store := memory.New()
	idx := newFlakyIndexer("reddit-golang-bad")
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.UserPostsPass(context.Background(), "alice")

	require.False(t, res.Succeeded)
	require.Equal(t, StopWriteFailed, res.Reason)
	require.ErrorIs(t, res.Err, errUpsertExhausted)
	require.Equal(t, 1, res.Indexed)
	require.Equal(t, 10, idx.attemptsFor("reddit-golang-bad"))
	// The items behind the failing one are never attempted.
	require.Zero(t, idx.attemptsFor("reddit-golang-unreached"))

	cp, err := store.Read(context.Background(), checkpoint.UserPostsKey("alice"))
	require.NoError(t, err)
	require.False(t, cp.LastSucceeded)
	require.Equal(t, int64(3000), cp.LastTimestamp)
}

func TestUserPostsPass_FeedFailureRecordsFailedPass(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		userPosts: map[string][]social.Post{
			"alice": {post("p1", "golang", 2000)},
		},
		feedErr: errors.New("listing 502"),
	}
	store := memory.New()
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.UserPostsPass(context.Background(), "alice")

	require.False(t, res.Succeeded)
	require.Equal(t, StopFeedFailed, res.Reason)
	require.Error(t, res.Err)
	require.Equal(t, 1, res.Indexed)

	cp, err := store.Read(context.Background(), checkpoint.UserPostsKey("alice"))
	require.NoError(t, err)
	require.False(t, cp.LastSucceeded)
}

type erroringStore struct {
	*memory.Store
	readErr  error
	writeErr error
	writes   int
}

func (s *erroringStore) Read(ctx context.Context, key string) (checkpoint.Checkpoint, error) {
	if s.readErr != nil {
		return checkpoint.Checkpoint{}, s.readErr
	}
	return s.Store.Read(ctx, key)
}

func (s *erroringStore) Write(ctx context.Context, cp checkpoint.Checkpoint) error {
	s.writes++
	if s.writeErr != nil {
		return s.writeErr
	}
	return s.Store.Write(ctx, cp)
}

func TestUserPostsPass_CheckpointReadFailureSkipsPass(t *testing.T) {
	t.Parallel()

	source := &fakeSource{userPosts: map[string][]social.Post{
		"alice": {post("p1", "golang", 2000)},
	}}
	store := &erroringStore{Store: memory.New(), readErr: errors.New("db down")}
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.UserPostsPass(context.Background(), "alice")

	require.Equal(t, StopCheckpointFailed, res.Reason)
	require.Error(t, res.Err)
	require.Zero(t, res.Indexed)
	require.Zero(t, idx.Len())
	// Nothing ran, so nothing must be recorded either.
	require.Zero(t, store.writes)
}

func TestUserPostsPass_CheckpointWriteFailureMarksPassFailed(t *testing.T) {
	t.Parallel()

	source := &fakeSource{userPosts: map[string][]social.Post{
		"alice": {post("p1", "golang", 2000)},
	}}
	store := &erroringStore{Store: memory.New(), writeErr: errors.New("disk full")}
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.UserPostsPass(context.Background(), "alice")

	require.False(t, res.Succeeded)
	require.Equal(t, StopExhausted, res.Reason)
	require.Error(t, res.Err)
	require.Equal(t, 1, store.writes)
}

func TestUserRepliesPass_IndexesReplies(t *testing.T) {
	t.Parallel()

	source := &fakeSource{userReplies: map[string][]social.Reply{
		"alice": {
			{
				ID:           "c2",
				ParentPostID: "p9",
				Community:    "golang",
				Author:       social.Author{Presence: social.AuthorPresent, Name: "alice", ID: "t2_alice"},
				Body:         "short answer",
				Permalink:    "/r/golang/comments/p9/c2",
				CreatedUTC:   2000,
			},
			{
				ID:           "c1",
				ParentPostID: "p8",
				Community:    "golang",
				Author:       social.Author{Presence: social.AuthorPresent, Name: "alice", ID: "t2_alice"},
				Body:         "older answer",
				Permalink:    "/r/golang/comments/p8/c1",
				CreatedUTC:   1000,
			},
		},
	}}
	store := memory.New()
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.UserRepliesPass(context.Background(), "alice")

	require.True(t, res.Succeeded)
	require.Equal(t, 2, res.Indexed)
	require.Equal(t, int64(2000), res.HighWaterMark)
	_, ok := idx.Get("reddit-golang-c2")
	require.True(t, ok)

	cp, err := store.Read(context.Background(), checkpoint.UserRepliesKey("alice"))
	require.NoError(t, err)
	require.True(t, cp.LastSucceeded)
}

func TestCommunityPass_DrainsRepliesInline(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		community: map[string][]social.Post{
			"golang": {post("p2", "golang", 2000), post("p1", "golang", 1000)},
		},
		postReplies: map[string][]social.Reply{
			"p2": {
				{ID: "c21", ParentPostID: "p2", Community: "golang", Body: "first", Permalink: "/r/golang/comments/p2/c21", CreatedUTC: 2500},
				{ID: "c22", ParentPostID: "p2", Community: "golang", Body: "second", Permalink: "/r/golang/comments/p2/c22", CreatedUTC: 2600},
			},
			"p1": {
				{ID: "c11", ParentPostID: "p1", Community: "golang", Body: "third", Permalink: "/r/golang/comments/p1/c11", CreatedUTC: 1500},
			},
		},
	}
	store := memory.New()
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.CommunityPass(context.Background(), "golang")

	require.True(t, res.Succeeded)
	require.Equal(t, 5, res.Indexed)
	// Replies are newer than their posts here, yet only post timestamps
	// feed the high-water mark.
	require.Equal(t, int64(2000), res.HighWaterMark)
	require.Equal(t, 5, idx.Len())
	_, ok := idx.Get("reddit-golang-c22")
	require.True(t, ok)
}

func TestCommunityPass_DrainsRepliesOfTextlessPosts(t *testing.T) {
	t.Parallel()

	linkOnly := post("link", "golang", 2000)
	linkOnly.Body = ""
	source := &fakeSource{
		community: map[string][]social.Post{"golang": {linkOnly}},
		postReplies: map[string][]social.Reply{
			"link": {
				{ID: "c1", ParentPostID: "link", Community: "golang", Body: "discussion", Permalink: "/r/golang/comments/link/c1", CreatedUTC: 2100},
			},
		},
	}
	store := memory.New()
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.CommunityPass(context.Background(), "golang")

	require.True(t, res.Succeeded)
	require.Equal(t, 1, res.Indexed)
	_, ok := idx.Get("reddit-golang-link")
	require.False(t, ok)
	_, ok = idx.Get("reddit-golang-c1")
	require.True(t, ok)
}

func TestCommunityPass_ReplyUpsertFailureFailStops(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		community: map[string][]social.Post{
			"golang": {post("p2", "golang", 2000), post("p1", "golang", 1000)},
		},
		postReplies: map[string][]social.Reply{
			"p2": {
				{ID: "bad", ParentPostID: "p2", Community: "golang", Body: "broken", Permalink: "/r/golang/comments/p2/bad", CreatedUTC: 2100},
			},
		},
	}
	store := memory.New()
	idx := newFlakyIndexer("reddit-golang-bad")
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.CommunityPass(context.Background(), "golang")

	require.False(t, res.Succeeded)
	require.Equal(t, StopWriteFailed, res.Reason)
	require.ErrorIs(t, res.Err, errUpsertExhausted)
	require.Equal(t, 1, res.Indexed)
	require.Zero(t, idx.attemptsFor("reddit-golang-p1"))

	cp, err := store.Read(context.Background(), checkpoint.CommunityKey("golang"))
	require.NoError(t, err)
	require.False(t, cp.LastSucceeded)
	require.Equal(t, int64(2000), cp.LastTimestamp)
}

func TestCommunityPass_ReplyListingFailureFailStops(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		community: map[string][]social.Post{
			"golang": {post("p1", "golang", 1000)},
		},
		repliesErr: errors.New("morechildren 500"),
	}
	store := memory.New()
	idx := index.NewMemory()
	c := newTestController(source, store, idx, []string{"golang"})

	res := c.CommunityPass(context.Background(), "golang")

	require.False(t, res.Succeeded)
	require.Equal(t, StopFeedFailed, res.Reason)
	require.Error(t, res.Err)
}
