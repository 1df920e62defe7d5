// Package harvest implements the incremental crawl engine: per-stream crawl
// passes bounded by durable checkpoints, plus the driver that sequences them
// over the watch-list.
package harvest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/social-harvester/internal/checkpoint"
	"github.com/JakeFAU/social-harvester/internal/index"
	"github.com/JakeFAU/social-harvester/internal/metrics"
	"github.com/JakeFAU/social-harvester/internal/normalize"
	"github.com/JakeFAU/social-harvester/internal/social"
)

// StopReason records why a pass stopped iterating its feed.
type StopReason string

// Every pass exits through exactly one of these.
const (
	// StopExhausted: the upstream feed ran out of items.
	StopExhausted StopReason = "exhausted"
	// StopCutoff: an item at or below the checkpoint cutoff was reached.
	StopCutoff StopReason = "cutoff_reached"
	// StopWriteFailed: an upsert exhausted all retries.
	StopWriteFailed StopReason = "write_failed"
	// StopFeedFailed: the upstream listing itself failed.
	StopFeedFailed StopReason = "feed_failed"
	// StopCheckpointFailed: the checkpoint could not be read, so the pass
	// never started iterating.
	StopCheckpointFailed StopReason = "checkpoint_failed"
)

// errUpsertExhausted marks a retried write that never succeeded.
var errUpsertExhausted = errors.New("upsert retries exhausted")

// PassResult summarizes one crawl pass over a single content stream.
type PassResult struct {
	Key           string
	Reason        StopReason
	Succeeded     bool
	Indexed       int
	HighWaterMark int64
	Err           error
}

// Controller drives crawl passes: it reads the stream checkpoint, walks the
// newest-first feed applying the scope filter and cutoff, normalizes and
// upserts in-scope items, and writes the updated checkpoint exactly once on
// the way out.
type Controller struct {
	source  social.Source
	store   checkpoint.Store
	indexer index.Indexer
	scope   *ScopeFilter
	retrier *Retrier
	logger  *zap.Logger
}

// NewController wires the collaborators for crawl passes.
func NewController(
	source social.Source,
	store checkpoint.Store,
	indexer index.Indexer,
	scope *ScopeFilter,
	retrier *Retrier,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		source:  source,
		store:   store,
		indexer: indexer,
		scope:   scope,
		retrier: retrier,
		logger:  logger,
	}
}

// streamItem is one feed element viewed uniformly by the pass loop.
type streamItem struct {
	ID        string
	Community string
	Timestamp int64
	Permalink string
	// Doc builds the document for this item; false means skip (do not
	// index, do not fail).
	Doc func() (normalize.Document, bool)
	// Extra runs after the item's own document is handled and returns how
	// many additional documents it indexed. The community pass uses it to
	// drain replies inline.
	Extra func(ctx context.Context) (int, error)
}

// UserPostsPass crawls the posts track of one watched user.
func (c *Controller) UserPostsPass(ctx context.Context, username string) PassResult {
	feed := c.source.UserPosts(username)
	next := func(ctx context.Context) (streamItem, error) {
		p, err := feed.Next(ctx)
		if err != nil {
			return streamItem{}, err
		}
		return streamItem{
			ID:        p.ID,
			Community: p.Community,
			Timestamp: p.CreatedUTC,
			Permalink: p.Permalink,
			Doc:       func() (normalize.Document, bool) { return normalize.Post(p) },
		}, nil
	}
	return c.runPass(ctx, checkpoint.UserPostsKey(username), "user_posts", next)
}

// UserRepliesPass crawls the replies track of one watched user.
func (c *Controller) UserRepliesPass(ctx context.Context, username string) PassResult {
	feed := c.source.UserReplies(username)
	next := func(ctx context.Context) (streamItem, error) {
		r, err := feed.Next(ctx)
		if err != nil {
			return streamItem{}, err
		}
		return streamItem{
			ID:        r.ID,
			Community: r.Community,
			Timestamp: r.CreatedUTC,
			Permalink: r.Permalink,
			Doc: func() (normalize.Document, bool) {
				return normalize.Reply(r), true
			},
		}, nil
	}
	return c.runPass(ctx, checkpoint.UserRepliesKey(username), "user_replies", next)
}

// CommunityPass crawls one community's combined post+reply stream. Replies
// are drained inline per post; only the post's timestamp can advance the
// high-water mark, so replies arriving later than their post are not
// individually tracked.
func (c *Controller) CommunityPass(ctx context.Context, name string) PassResult {
	feed := c.source.CommunityPosts(name)
	next := func(ctx context.Context) (streamItem, error) {
		p, err := feed.Next(ctx)
		if err != nil {
			return streamItem{}, err
		}
		return streamItem{
			ID:        p.ID,
			Community: p.Community,
			Timestamp: p.CreatedUTC,
			Permalink: p.Permalink,
			Doc:       func() (normalize.Document, bool) { return normalize.Post(p) },
			Extra: func(ctx context.Context) (int, error) {
				return c.drainReplies(ctx, p)
			},
		}, nil
	}
	return c.runPass(ctx, checkpoint.CommunityKey(name), "community", next)
}

// runPass is the single pass state machine. Every exit from the iteration
// loop funnels through one checkpoint write.
func (c *Controller) runPass(ctx context.Context, key, kind string, next func(context.Context) (streamItem, error)) PassResult {
	cp, err := c.store.Read(ctx, key)
	if err != nil {
		c.logger.Error("checkpoint read failed",
			zap.String("stream", key),
			zap.Error(err),
		)
		metrics.ObservePass(kind, string(StopCheckpointFailed))
		return PassResult{Key: key, Reason: StopCheckpointFailed, Err: fmt.Errorf("read checkpoint: %w", err)}
	}

	cutoff := cp.LastTimestamp
	cutoffValid := cp.LastSucceeded
	mark := cutoff
	passOK := true
	indexed := 0
	var reason StopReason
	var firstErr error

	c.logger.Info("pass started",
		zap.String("stream", key),
		zap.Int64("cutoff", cutoff),
		zap.Bool("cutoff_valid", cutoffValid),
	)

	for {
		item, err := next(ctx)
		if errors.Is(err, social.ErrEndOfFeed) {
			reason = StopExhausted
			break
		}
		if err != nil {
			// Upstream enumeration failure. The pass is recorded as
			// failed so the next run rescans from the same cutoff.
			passOK = false
			reason = StopFeedFailed
			firstErr = err
			c.logger.Error("feed failed",
				zap.String("stream", key),
				zap.Error(err),
			)
			break
		}

		if !c.scope.Allows(item.Community) {
			c.logger.Info("community out of scope, skipping item",
				zap.String("stream", key),
				zap.String("community", item.Community),
				zap.String("item_id", item.ID),
				zap.String("permalink", item.Permalink),
			)
			metrics.ObserveItemSkipped("reddit", "filtered")
			continue
		}

		if cutoffValid && item.Timestamp <= cutoff {
			reason = StopCutoff
			break
		}

		if doc, ok := item.Doc(); !ok {
			c.logger.Debug("item has no text, skipping",
				zap.String("stream", key),
				zap.String("item_id", item.ID),
				zap.String("permalink", item.Permalink),
			)
			metrics.ObserveItemSkipped("reddit", "no_text")
		} else {
			if !c.upsert(ctx, doc) {
				passOK = false
				reason = StopWriteFailed
				firstErr = fmt.Errorf("%w: %s", errUpsertExhausted, doc.ID)
				break
			}
			indexed++
			if item.Timestamp > mark {
				mark = item.Timestamp
			}
		}

		if item.Extra != nil {
			n, err := item.Extra(ctx)
			indexed += n
			if err != nil {
				passOK = false
				firstErr = err
				if errors.Is(err, errUpsertExhausted) {
					reason = StopWriteFailed
				} else {
					reason = StopFeedFailed
				}
				c.logger.Error("inline reply drain failed",
					zap.String("stream", key),
					zap.String("item_id", item.ID),
					zap.Error(err),
				)
				break
			}
		}
	}

	result := PassResult{
		Key:           key,
		Reason:        reason,
		Succeeded:     passOK,
		Indexed:       indexed,
		HighWaterMark: mark,
		Err:           firstErr,
	}

	wcp := checkpoint.Checkpoint{Key: key, LastTimestamp: mark, LastSucceeded: passOK}
	if err := c.store.Write(ctx, wcp); err != nil {
		c.logger.Error("checkpoint write failed",
			zap.String("stream", key),
			zap.Error(err),
		)
		if result.Err == nil {
			result.Err = fmt.Errorf("write checkpoint: %w", err)
		}
		result.Succeeded = false
	}

	metrics.ObservePass(kind, string(reason))
	c.logger.Info("pass finished",
		zap.String("stream", key),
		zap.String("reason", string(reason)),
		zap.Bool("succeeded", result.Succeeded),
		zap.Int("indexed", indexed),
		zap.Int64("high_water_mark", mark),
	)
	return result
}

// drainReplies materializes and indexes every reply of a post. The first
// exhausted upsert aborts the drain; the caller fail-stops the whole pass.
func (c *Controller) drainReplies(ctx context.Context, post social.Post) (int, error) {
	replies, err := c.source.PostReplies(ctx, post)
	if err != nil {
		return 0, fmt.Errorf("list replies for post %s: %w", post.ID, err)
	}
	indexed := 0
	for _, r := range replies {
		doc := normalize.Reply(r)
		if !c.upsert(ctx, doc) {
			return indexed, fmt.Errorf("%w: %s", errUpsertExhausted, doc.ID)
		}
		indexed++
	}
	return indexed, nil
}

func (c *Controller) upsert(ctx context.Context, doc normalize.Document) bool {
	ok := c.retrier.Upsert(ctx, doc.ID, doc.URL, func(ctx context.Context) error {
		return c.indexer.Upsert(ctx, doc.ID, doc)
	})
	if ok {
		metrics.ObserveItemIndexed("reddit", doc.DataType)
	}
	return ok
}
