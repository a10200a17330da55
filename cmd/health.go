package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/competition"
	"github.com/cellarium/catalog-cli/internal/fetch"
	"github.com/cellarium/catalog-cli/internal/health"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Source health checks and alert evaluation",
}

// selectorChecksFor turns a competition's selector cascade into health
// checks: each row selector plus its scoped name and medal selectors.
func selectorChecksFor(p competition.Parser) []health.SelectorCheck {
	var checks []health.SelectorCheck
	for _, set := range p.Selectors() {
		checks = append(checks, health.SelectorCheck{Selector: set.Row, MinExpected: 1})
		if set.Name != "" {
			checks = append(checks, health.SelectorCheck{Selector: set.Row + " " + set.Name, MinExpected: 1})
		}
		if set.Medal != "" {
			checks = append(checks, health.SelectorCheck{Selector: set.Row + " " + set.Medal, MinExpected: 1})
		}
	}
	return checks
}

var healthCheckCmd = &cobra.Command{
	Use:   "check <source-slug>",
	Short: "Probe a source's selectors and page structure against a live page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		src, err := st.GetSourceBySlug(ctx, args[0])
		if err != nil {
			return err
		}
		if src == nil {
			return eris.Errorf("unknown source: %s", args[0])
		}

		router := newFetcher(st, newCostRecorder(st))
		res, err := router.Fetch(ctx, fetch.Request{URL: src.BaseURL, Source: src})
		if err != nil {
			return err
		}
		if !res.Success {
			return eris.Errorf("sample fetch failed: %s", res.Error)
		}

		alerter := health.NewAlerter(cfg.Monitoring.WebhookURL)
		var alerts []health.Alert

		if parser, ok := competition.ForSlug(src.Slug); ok {
			report, err := health.CheckSelectors(res.Content, selectorChecksFor(parser))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SELECTOR\tMATCHED\tMIN\tHEALTHY")
			for _, r := range report.Results {
				fmt.Fprintf(w, "%s\t%d\t%d\t%t\n", r.Selector, r.Matched, r.MinExpected, r.Healthy)
			}
			w.Flush() //nolint:errcheck
			fmt.Printf("source healthy: %t\n", report.Healthy)

			if a := health.DegradedAlert(src.ID, report); a != nil {
				alerts = append(alerts, *a)
			}
		}

		drifted, err := health.NewDriftDetector(st).Check(ctx, src.ID, res.Content)
		if err != nil {
			return err
		}
		fmt.Printf("structural drift: %t\n", drifted)
		if drifted {
			alerts = append(alerts, *health.DriftAlert(src.ID))
		}

		alerter.Send(ctx, alerts)
		return nil
	},
}

var healthMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Collect error rates and spend, evaluating alert thresholds once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		checker := health.NewChecker(st, health.NewAlerter(cfg.Monitoring.WebhookURL), cfg.Monitoring)
		snap, err := checker.Collect(ctx, cfg.Monitoring.LookbackWindowHours)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tFAILURES\tTOTAL\tRATE")
		for _, sr := range snap.SourceRates {
			fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\n", sr.Slug, sr.Failures, sr.Total, sr.Rate*100)
		}
		w.Flush() //nolint:errcheck
		fmt.Printf("spend last %dh: %d¢\n", snap.LookbackHours, snap.CostCents)

		alerts := checker.Evaluate(snap)
		if len(alerts) == 0 {
			zap.L().Info("no alert thresholds breached")
			return nil
		}
		for _, a := range alerts {
			fmt.Printf("[%s] %s: %s\n", a.Severity, a.Type, a.Message)
		}
		return nil
	},
}

func init() {
	healthCmd.AddCommand(healthCheckCmd, healthMetricsCmd)
	rootCmd.AddCommand(healthCmd)
}
