package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cellarium/catalog-cli/internal/verify"
)

var (
	verifyProductID string
	verifyLimit     int
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run enrichment rounds to drive products toward multi-source agreement",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		costs := newCostRecorder(st)
		pipe := verify.NewPipeline(st, newSearch(costs), newFetcher(st, costs), newExtractor(costs))

		if verifyProductID != "" {
			p, err := st.GetProduct(ctx, verifyProductID)
			if err != nil {
				return err
			}
			if p == nil {
				return eris.Errorf("unknown product: %s", verifyProductID)
			}
			res, err := pipe.VerifyProduct(ctx, p)
			if err != nil {
				return err
			}
			zap.L().Info("verification finished",
				zap.String("product_id", p.ID),
				zap.String("status", string(p.Status)),
				zap.Int("score", p.CompletenessScore),
				zap.Int("sources_used", len(res.SourcesUsed)),
				zap.Int("conflicts", len(res.Conflicts)),
			)
			return nil
		}

		candidates, err := st.ListEnrichmentCandidates(ctx, verifyLimit)
		if err != nil {
			return err
		}
		zap.L().Info("verifying candidates", zap.Int("count", len(candidates)))

		workers := cfg.Verification.MaxConcurrent
		if workers <= 0 {
			workers = 4
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := range candidates {
			p := &candidates[i]
			g.Go(func() error {
				if _, err := pipe.VerifyProduct(gctx, p); err != nil {
					zap.L().Warn("verification failed",
						zap.String("product_id", p.ID), zap.Error(err))
				}
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyProductID, "id", "", "verify a single product by id")
	verifyCmd.Flags().IntVar(&verifyLimit, "limit", 25, "maximum candidates per run")
	rootCmd.AddCommand(verifyCmd)
}
