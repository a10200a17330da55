package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/match"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/internal/resilience"
	"github.com/cellarium/catalog-cli/internal/store"
)

var (
	replayCooldownHours int
	replayLimit         int
	replayMaxRetries    int
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-crawl URLs that failed transiently, once their cooldown has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		errs, err := st.ListCrawlErrors(ctx, store.ErrorFilter{
			Unresolved: true,
			Limit:      replayLimit,
		})
		if err != nil {
			return err
		}

		cooldown := time.Duration(replayCooldownHours) * time.Hour
		candidates := resilience.ReplayCandidates(errs, time.Now().UTC(), cooldown, replayMaxRetries)
		if len(candidates) == 0 {
			zap.L().Info("no dead-lettered urls due for replay")
			return nil
		}

		fr, err := newFrontier(ctx)
		if err != nil {
			return err
		}

		// Resolve each replayed row up front: the fetch router logs a
		// fresh crawl_errors row if the retry fails again, so nothing is
		// lost, and stale rows stop accumulating.
		requeued := 0
		for _, c := range candidates {
			// Replayed URLs are already in the seen-set; Requeue skips it.
			if err := fr.Requeue(c.URL, model.PrioritySpeculative, model.QueueMeta{SourceID: c.SourceID}); err != nil {
				zap.L().Warn("replay enqueue failed", zap.String("url", c.URL), zap.Error(err))
				continue
			}
			id, err := strconv.ParseInt(c.ID, 10, 64)
			if err == nil {
				if err := st.ResolveCrawlError(ctx, id); err != nil {
					zap.L().Warn("resolve crawl error failed", zap.Int64("id", id), zap.Error(err))
				}
			}
			requeued++
		}
		zap.L().Info("dead-lettered urls requeued",
			zap.Int("candidates", len(candidates)),
			zap.Int("requeued", requeued),
		)

		costs := newCostRecorder(st)
		router := newFetcher(st, costs)
		processed, err := drainFrontier(ctx, fr, router, newExtractor(costs), match.NewSaver(st), st)
		zap.L().Info("replay finished", zap.Int("pages", processed))
		return err
	},
}

func init() {
	replayCmd.Flags().IntVar(&replayCooldownHours, "cooldown-hours", 1, "minimum age of a failure before replaying it")
	replayCmd.Flags().IntVar(&replayLimit, "limit", 200, "maximum unresolved errors to consider")
	replayCmd.Flags().IntVar(&replayMaxRetries, "max-retries", 3, "per-url replay budget")
	rootCmd.AddCommand(replayCmd)
}
