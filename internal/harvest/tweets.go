package harvest

import (
	"context"
	"errors"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/JakeFAU/social-harvester/internal/metrics"
	"github.com/JakeFAU/social-harvester/internal/normalize"
	"github.com/JakeFAU/social-harvester/internal/social"
)

// existsSampleCeiling controls the probabilistic skip check: roughly 30% of
// sampled tweets are probed against the index, and a hit stops that user's
// timeline for this run. Idempotent document ids keep this safe.
const existsSampleCeiling = 2

func defaultSampler() int {
	return rand.IntN(10)
}

// harvestTimelines ingests the watched twitter timelines. Tweets have no
// checkpoint track; dedup rests entirely on the idempotent "tweet-<id>"
// document ids plus the sampled existence probe.
func (d *Driver) harvestTimelines(ctx context.Context, logger *zap.Logger) int {
	if d.timeline == nil {
		logger.Warn("twitter users configured but no timeline source wired")
		return 0
	}
	users, err := d.timeline.Users(ctx, d.watch.TwitterUsers)
	if err != nil {
		logger.Error("twitter user lookup failed", zap.Error(err))
		return 0
	}
	if len(users) == 0 {
		logger.Warn("twitter user lookup returned no users")
		return 0
	}

	indexed := 0
	for _, user := range users {
		n, err := d.harvestUserTweets(ctx, user)
		indexed += n
		if err != nil {
			logger.Error("timeline ingestion failed",
				zap.String("username", user.Username),
				zap.Error(err),
			)
		}
	}
	return indexed
}

func (d *Driver) harvestUserTweets(ctx context.Context, user social.TwitterUser) (int, error) {
	feed := d.timeline.UserTweets(user)
	indexed := 0
	for {
		tweet, err := feed.Next(ctx)
		if errors.Is(err, social.ErrEndOfFeed) {
			return indexed, nil
		}
		if err != nil {
			return indexed, err
		}

		doc := normalize.Tweet(user, tweet)

		if d.sample() <= existsSampleCeiling {
			exists, err := d.indexer.Exists(ctx, doc.ID)
			if err != nil {
				// Best-effort probe; an error just means we index anyway.
				d.logger.Warn("existence probe failed",
					zap.String("doc_id", doc.ID),
					zap.Error(err),
				)
			} else if exists {
				d.logger.Info("timeline already indexed, skipping user",
					zap.String("username", user.Username),
					zap.String("doc_id", doc.ID),
				)
				metrics.ObserveItemSkipped("twitter", "already_indexed")
				return indexed, nil
			}
		}

		ok := d.retrier.Upsert(ctx, doc.ID, doc.URL, func(ctx context.Context) error {
			return d.indexer.Upsert(ctx, doc.ID, doc)
		})
		if !ok {
			return indexed, errUpsertExhausted
		}
		metrics.ObserveItemIndexed("twitter", doc.DataType)
		indexed++
	}
}
