package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cellarium/catalog-cli/internal/fetch"
	"github.com/cellarium/catalog-cli/internal/match"
	"github.com/cellarium/catalog-cli/internal/model"
)

const extractBatchMax = 50

var (
	extractType    string
	extractFile    string
	extractDryRun  bool
	extractWorkers int
)

var extractCmd = &cobra.Command{
	Use:   "extract [urls...]",
	Short: "Fetch and extract product pages, saving through the matcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		urls := args
		if extractFile != "" {
			fromFile, err := readURLFile(extractFile)
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return eris.New("no URLs given (pass as arguments or --file)")
		}
		if len(urls) > extractBatchMax {
			return eris.Errorf("batch too large: %d URLs (max %d)", len(urls), extractBatchMax)
		}

		typ := model.ProductType(extractType)
		if typ != model.TypeWhiskey && typ != model.TypePortWine {
			return eris.Errorf("unknown product type: %s", extractType)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		costs := newCostRecorder(st)
		router := newFetcher(st, costs)
		ex := newExtractor(costs)
		saver := match.NewSaver(st)

		var mu sync.Mutex
		created, merged, failed := 0, 0, 0

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(extractWorkers)
		for _, u := range urls {
			g.Go(func() error {
				res, err := router.Fetch(gctx, fetch.Request{URL: u})
				if err == nil && !res.Success {
					err = eris.Errorf("fetch unusable: %s", res.Error)
				}
				var eres *model.ExtractionResult
				if err == nil {
					eres, err = ex.Extract(gctx, res.Content, u, typ, nil)
					if err == nil && !eres.Success {
						err = eris.Errorf("extraction failed: %s", eres.Error)
					}
				}
				if err != nil {
					zap.L().Warn("extract failed", zap.String("url", u), zap.Error(err))
					mu.Lock()
					failed++
					mu.Unlock()
					return nil
				}

				if extractDryRun {
					out, _ := json.MarshalIndent(eres.Fields, "", "  ")
					fmt.Printf("%s\n%s\n", u, out)
					return nil
				}

				saved, err := saver.Save(gctx, eres, u, typ, "", true)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					zap.L().Warn("save failed", zap.String("url", u), zap.Error(err))
					failed++
					return nil
				}
				if saved.Created {
					created++
				} else {
					merged++
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("extract batch finished",
			zap.Int("urls", len(urls)),
			zap.Int("created", created),
			zap.Int("merged", merged),
			zap.Int("failed", failed),
		)
		return nil
	},
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, eris.Wrapf(sc.Err(), "read %s", path)
}

func init() {
	extractCmd.Flags().StringVar(&extractType, "type", "whiskey", "product type (whiskey or port_wine)")
	extractCmd.Flags().StringVar(&extractFile, "file", "", "file with one URL per line")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "print extracted fields without saving")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 5, "concurrent extractions")
	rootCmd.AddCommand(extractCmd)
}
