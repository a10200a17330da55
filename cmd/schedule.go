package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/awards"
	"github.com/cellarium/catalog-cli/internal/competition"
	"github.com/cellarium/catalog-cli/internal/health"
	"github.com/cellarium/catalog-cli/internal/hub"
	"github.com/cellarium/catalog-cli/internal/match"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/internal/scheduler"
	"github.com/cellarium/catalog-cli/internal/skeleton"
)

var scheduleInterval time.Duration

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the crawl scheduler and health checker until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fr, err := newFrontier(ctx)
		if err != nil {
			return err
		}
		costs := newCostRecorder(st)
		router := newFetcher(st, costs)
		searcher := newSearch(costs)
		ex := newExtractor(costs)
		saver := match.NewSaver(st)
		sk := skeleton.NewManager(st, awards.NewHandler(st))

		compOrch := competition.NewOrchestrator(router, sk, searcher, fr)
		hubOrch := hub.NewOrchestrator(router, hub.NewParser(loadHubConfigs()), st,
			&officialSiteFinder{search: searcher}, cfg.Discovery.HubMaxPages)

		sched := scheduler.New(st, scheduleInterval)
		sched.Register(model.SourceCompetition, func(ctx context.Context, src *model.Source) (*scheduler.Stats, error) {
			sum, err := compOrch.Run(ctx, src, time.Now().Year())
			if err != nil {
				return nil, err
			}
			drained, derr := drainFrontier(ctx, fr, router, ex, saver, st)
			stats := &scheduler.Stats{
				PagesCrawled:  1 + drained,
				ProductsFound: sum.RecordsParsed,
				ProductsNew:   sum.SkeletonsCreated,
				Summary: fmt.Sprintf("%d records, %d skeletons, %d merged, %d enqueued",
					sum.RecordsParsed, sum.SkeletonsCreated, sum.ProductsMerged, sum.URLsEnqueued),
			}
			return stats, derr
		})
		sched.Register(model.SourceRetailer, func(ctx context.Context, src *model.Source) (*scheduler.Stats, error) {
			sum, err := hubOrch.Run(ctx, src)
			if err != nil {
				return nil, err
			}
			return &scheduler.Stats{
				PagesCrawled:  sum.PagesCrawled,
				ProductsFound: sum.BrandsFound,
				ProductsNew:   sum.SourcesRegistered,
				ErrorCount:    sum.LookupsFailed,
				Summary:       fmt.Sprintf("%d brands, %d sources registered", sum.BrandsFound, sum.SourcesRegistered),
			}, nil
		})

		checker := health.NewChecker(st, health.NewAlerter(cfg.Monitoring.WebhookURL), cfg.Monitoring)
		go checker.Run(ctx)

		zap.L().Info("scheduler running", zap.Duration("interval", scheduleInterval))
		sched.Run(ctx)
		return nil
	},
}

func init() {
	scheduleCmd.Flags().DurationVar(&scheduleInterval, "interval", 15*time.Minute, "sweep interval")
	rootCmd.AddCommand(scheduleCmd)
}
