package harvest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/social-harvester/internal/index"
	"github.com/JakeFAU/social-harvester/internal/social"
)

// IDGenerator produces run ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// WatchList names everything one run covers.
type WatchList struct {
	Users        []string
	Communities  []string
	TwitterUsers []string
}

// Summary aggregates the outcome of one full run.
type Summary struct {
	RunID         string
	Passes        []PassResult
	FailedPasses  int
	TweetsIndexed int
	Duration      time.Duration
}

// Driver sequences crawl passes over the watch-list. Execution is strictly
// sequential: one entity finishes completely before the next begins, so no
// two passes ever touch the same checkpoint concurrently.
type Driver struct {
	controller *Controller
	timeline   social.TimelineSource
	indexer    index.Indexer
	retrier    *Retrier
	watch      WatchList
	ids        IDGenerator
	clock      Clock
	sample     func() int
	logger     *zap.Logger
}

// NewDriver wires the run driver. timeline may be nil when no twitter users
// are watched. sample must return a value in [0,10); nil uses the default
// random sampler.
func NewDriver(
	controller *Controller,
	timeline social.TimelineSource,
	indexer index.Indexer,
	retrier *Retrier,
	watch WatchList,
	ids IDGenerator,
	clock Clock,
	sample func() int,
	logger *zap.Logger,
) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sample == nil {
		sample = defaultSampler
	}
	return &Driver{
		controller: controller,
		timeline:   timeline,
		indexer:    indexer,
		retrier:    retrier,
		watch:      watch,
		ids:        ids,
		clock:      clock,
		sample:     sample,
		logger:     logger,
	}
}

// Run processes every watched entity once. Individual entity failures are
// recorded in their checkpoints and in the summary; they never abort the
// run.
func (d *Driver) Run(ctx context.Context) Summary {
	started := d.clock.Now()
	runID, err := d.ids.NewID()
	if err != nil {
		// A missing run id only hurts log correlation.
		d.logger.Warn("run id generation failed", zap.Error(err))
		runID = "unknown"
	}
	logger := d.logger.With(zap.String("run_id", runID))
	logger.Info("run started",
		zap.Int("users", len(d.watch.Users)),
		zap.Int("communities", len(d.watch.Communities)),
		zap.Int("twitter_users", len(d.watch.TwitterUsers)),
	)

	summary := Summary{RunID: runID}
	record := func(res PassResult) {
		summary.Passes = append(summary.Passes, res)
		if !res.Succeeded || res.Err != nil {
			summary.FailedPasses++
		}
	}

	for _, username := range d.watch.Users {
		record(d.controller.UserPostsPass(ctx, username))
		record(d.controller.UserRepliesPass(ctx, username))
	}
	for _, community := range d.watch.Communities {
		record(d.controller.CommunityPass(ctx, community))
	}
	if len(d.watch.TwitterUsers) > 0 {
		summary.TweetsIndexed = d.harvestTimelines(ctx, logger)
	}

	summary.Duration = d.clock.Now().Sub(started)
	logger.Info("run finished",
		zap.Int("passes", len(summary.Passes)),
		zap.Int("failed_passes", summary.FailedPasses),
		zap.Int("tweets_indexed", summary.TweetsIndexed),
		zap.Duration("duration", summary.Duration),
	)
	return summary
}
