package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cellarium/catalog-cli/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage crawl sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		activeOnly, _ := cmd.Flags().GetBool("active")
		sources, err := st.ListSources(ctx, activeOnly)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SLUG\tCATEGORY\tPRIORITY\tFREQ(H)\tACTIVE\tNEXT CRAWL")
		for _, s := range sources {
			next := "-"
			if s.NextCrawlAt != nil {
				next = s.NextCrawlAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%s\n",
				s.Slug, s.Category, s.Priority, s.CrawlFreqHrs, s.Active, next)
		}
		return w.Flush()
	},
}

// sourceSeed is the YAML shape for `sources seed`.
type sourceSeed struct {
	Sources []struct {
		Name         string   `yaml:"name"`
		Slug         string   `yaml:"slug"`
		BaseURL      string   `yaml:"base_url"`
		Category     string   `yaml:"category"`
		ProductTypes []string `yaml:"product_types"`
		Priority     int      `yaml:"priority"`
		CrawlFreqHrs int      `yaml:"crawl_frequency_hours"`
		RateLimitRPM int      `yaml:"rate_limit_rpm"`
		RequiresJS   bool     `yaml:"requires_js"`
		RobotsOK     bool     `yaml:"robots_ok"`
		TosOK        bool     `yaml:"tos_ok"`
	} `yaml:"sources"`
}

var sourcesSeedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Register sources from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}
		var seed sourceSeed
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		for _, s := range seed.Sources {
			src := &model.Source{
				Name:          s.Name,
				Slug:          s.Slug,
				BaseURL:       s.BaseURL,
				Category:      model.SourceCategory(s.Category),
				Priority:      s.Priority,
				CrawlFreqHrs:  s.CrawlFreqHrs,
				RateLimitRPM:  s.RateLimitRPM,
				RequiresJS:    s.RequiresJS,
				RobotsOK:      s.RobotsOK,
				TosOK:         s.TosOK,
				DiscoveredVia: model.DiscoveredManual,
				Active:        true,
			}
			for _, t := range s.ProductTypes {
				src.ProductTypes = append(src.ProductTypes, model.ProductType(t))
			}
			if err := st.UpsertSource(ctx, src); err != nil {
				return err
			}
			zap.L().Info("source registered", zap.String("slug", src.Slug))
		}
		return nil
	},
}

func init() {
	sourcesListCmd.Flags().Bool("active", false, "only active sources")
	sourcesCmd.AddCommand(sourcesListCmd, sourcesSeedCmd)
	rootCmd.AddCommand(sourcesCmd)
}
