package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/social-harvester/internal/api"
	"github.com/JakeFAU/social-harvester/internal/clock/system"
	"github.com/JakeFAU/social-harvester/internal/harvest"
	"github.com/JakeFAU/social-harvester/internal/id/uuid"
)

// newHarvestCmd creates the command that runs a single harvest pass over
// every watched entity.
func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Crawl the watch list once and index new content.",
		Long: `harvest walks every watched reddit user, reddit community and twitter
user exactly once, indexes the content that is newer than each stream's
checkpoint, and writes the advanced checkpoints back before exiting.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			cfg := appInstance.Config()
			logger := appInstance.Logger()

			// Watched communities are always in scope for their own pass,
			// on top of the explicitly allowed ones.
			allowed := append([]string{}, cfg.Scope.AllowedCommunities...)
			allowed = append(allowed, cfg.Reddit.Communities...)
			scope := harvest.NewScopeFilter(allowed, cfg.Scope.TopicKeywords)

			retrier := harvest.NewRetrier(logger)
			controller := harvest.NewController(
				appInstance.Reddit(),
				appInstance.Checkpoints(),
				appInstance.Indexer(),
				scope,
				retrier,
				logger,
			)
			driver := harvest.NewDriver(
				controller,
				appInstance.Twitter(),
				appInstance.Indexer(),
				retrier,
				harvest.WatchList{
					Users:        cfg.Reddit.Users,
					Communities:  cfg.Reddit.Communities,
					TwitterUsers: cfg.Twitter.Users,
				},
				uuid.NewGenerator(),
				system.Clock{},
				nil,
				logger,
			)

			if cfg.Server.Enabled {
				server := api.NewServer(appInstance.Checkpoints(), appInstance.Indexer(), logger)
				go func() {
					if err := server.Run(cmd.Context(), cfg.Server.Port); err != nil {
						logger.Error("ops server stopped", zap.Error(err))
					}
				}()
			}

			summary := driver.Run(cmd.Context())
			logger.Info("harvest finished",
				zap.String("run_id", summary.RunID),
				zap.Int("passes", len(summary.Passes)),
				zap.Int("failed_passes", summary.FailedPasses),
				zap.Int("tweets_indexed", summary.TweetsIndexed),
				zap.Duration("duration", summary.Duration),
			)

			// Entity failures are recorded in their checkpoints; the run
			// itself still completed.
			return nil
		},
	}
}
