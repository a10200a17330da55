package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cellarium/catalog-cli/internal/awards"
	"github.com/cellarium/catalog-cli/internal/competition"
	"github.com/cellarium/catalog-cli/internal/extract"
	"github.com/cellarium/catalog-cli/internal/fetch"
	"github.com/cellarium/catalog-cli/internal/frontier"
	"github.com/cellarium/catalog-cli/internal/hub"
	"github.com/cellarium/catalog-cli/internal/match"
	"github.com/cellarium/catalog-cli/internal/model"
	"github.com/cellarium/catalog-cli/internal/resilience"
	"github.com/cellarium/catalog-cli/internal/search"
	"github.com/cellarium/catalog-cli/internal/skeleton"
	"github.com/cellarium/catalog-cli/internal/store"
)

var (
	crawlSourceSlug string
	crawlYear       int
)

var crawlAwardsCmd = &cobra.Command{
	Use:   "crawl-awards",
	Short: "Crawl a competition results source and enrich new skeletons",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		src, err := st.GetSourceBySlug(ctx, crawlSourceSlug)
		if err != nil {
			return err
		}
		if src == nil {
			return eris.Errorf("unknown source: %s", crawlSourceSlug)
		}

		fr, err := newFrontier(ctx)
		if err != nil {
			return err
		}
		costs := newCostRecorder(st)
		router := newFetcher(st, costs)
		searcher := newSearch(costs)
		sk := skeleton.NewManager(st, awards.NewHandler(st))

		orch := competition.NewOrchestrator(router, sk, searcher, fr)
		sum, err := orch.Run(ctx, src, crawlYear)
		if err != nil {
			return err
		}
		zap.L().Info("competition crawl finished",
			zap.String("source", src.Slug),
			zap.Int("year", crawlYear),
			zap.Int("records", sum.RecordsParsed),
			zap.Int("skeletons", sum.SkeletonsCreated),
			zap.Int("merged", sum.ProductsMerged),
			zap.Int("unsupported", sum.Unsupported),
			zap.Int("enqueued", sum.URLsEnqueued),
		)

		processed, err := drainFrontier(ctx, fr, router, newExtractor(costs), match.NewSaver(st), st)
		zap.L().Info("enrichment queue drained", zap.Int("pages", processed))
		return err
	},
}

var crawlHubsCmd = &cobra.Command{
	Use:   "crawl-hubs",
	Short: "Walk a retailer hub and register discovered producer sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		src, err := st.GetSourceBySlug(ctx, crawlSourceSlug)
		if err != nil {
			return err
		}
		if src == nil {
			return eris.Errorf("unknown source: %s", crawlSourceSlug)
		}

		costs := newCostRecorder(st)
		router := newFetcher(st, costs)
		finder := &officialSiteFinder{search: newSearch(costs)}

		orch := hub.NewOrchestrator(router, hub.NewParser(loadHubConfigs()), st, finder, cfg.Discovery.HubMaxPages)
		sum, err := orch.Run(ctx, src)
		if err != nil {
			return err
		}
		zap.L().Info("hub crawl finished",
			zap.String("source", src.Slug),
			zap.Int("pages", sum.PagesCrawled),
			zap.Int("brands", sum.BrandsFound),
			zap.Int("registered", sum.SourcesRegistered),
			zap.Int("lookup_failures", sum.LookupsFailed),
		)
		return nil
	},
}

// officialSiteFinder adapts the search client's heuristic to the hub
// orchestrator's interface.
type officialSiteFinder struct {
	search *search.Client
}

func (f *officialSiteFinder) FindBrandOfficialSite(ctx context.Context, brandName string) (*hub.SiteResult, error) {
	hit, err := f.search.FindBrandOfficialSite(ctx, brandName)
	if err != nil || hit == nil {
		return nil, err
	}
	return &hub.SiteResult{URL: hit.Link, Domain: hit.Domain()}, nil
}

// drainFrontier works the enrichment queue: fetch each URL, extract it,
// and save through the matcher. Entries without a resolvable product type
// are dropped.
func drainFrontier(ctx context.Context, fr *frontier.Frontier, router *fetch.Router, ex *extract.Extractor, saver *match.Saver, st *store.PostgresStore) (int, error) {
	workers := cfg.Discovery.MaxConcurrent
	if workers <= 0 {
		workers = 4
	}

	var g errgroup.Group
	processed := make(chan int, workers)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			n := 0
			defer func() { processed <- n }()
			for {
				entry, err := fr.Next(ctx)
				if eris.Is(err, frontier.ErrEmpty) {
					return nil
				}
				if err != nil {
					return err
				}
				if err := processEntry(ctx, entry, router, ex, saver, st); err != nil {
					requeued := fr.MarkFailed(entry, resilience.IsTransient(err))
					zap.L().Warn("queue entry failed",
						zap.String("url", entry.URL),
						zap.Int("attempts", entry.Attempts),
						zap.Bool("requeued", requeued),
						zap.Error(err))
					continue
				}
				fr.MarkDone(entry)
				n++
			}
		})
	}

	err := g.Wait()
	close(processed)
	total := 0
	for n := range processed {
		total += n
	}
	return total, err
}

func processEntry(ctx context.Context, entry *model.QueueEntry, router *fetch.Router, ex *extract.Extractor, saver *match.Saver, st *store.PostgresStore) error {
	typ := model.TypeWhiskey
	if entry.Meta.SkeletonID != "" {
		p, err := st.GetProduct(ctx, entry.Meta.SkeletonID)
		if err != nil {
			return err
		}
		if p != nil {
			typ = p.ProductType
		}
	}

	res, err := router.Fetch(ctx, fetch.Request{URL: entry.URL})
	if err != nil {
		return err
	}
	if !res.Success {
		return eris.Errorf("fetch unusable: %s", res.Error)
	}

	eres, err := ex.Extract(ctx, res.Content, entry.URL, typ, nil)
	if err != nil {
		return err
	}
	if !eres.Success {
		return eris.Errorf("extraction failed: %s", eres.Error)
	}

	_, err = saver.Save(ctx, eres, entry.URL, typ, "", true)
	return err
}

func init() {
	crawlAwardsCmd.Flags().StringVar(&crawlSourceSlug, "source", "", "source slug (required)")
	crawlAwardsCmd.Flags().IntVar(&crawlYear, "year", time.Now().Year(), "competition year")
	_ = crawlAwardsCmd.MarkFlagRequired("source")

	crawlHubsCmd.Flags().StringVar(&crawlSourceSlug, "source", "", "source slug (required)")
	_ = crawlHubsCmd.MarkFlagRequired("source")

	rootCmd.AddCommand(crawlAwardsCmd, crawlHubsCmd)
}
