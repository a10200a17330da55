package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cellarium/catalog-cli/internal/cost"
	"github.com/cellarium/catalog-cli/internal/extract"
	"github.com/cellarium/catalog-cli/internal/fetch"
	"github.com/cellarium/catalog-cli/internal/frontier"
	"github.com/cellarium/catalog-cli/internal/hub"
	"github.com/cellarium/catalog-cli/internal/search"
	"github.com/cellarium/catalog-cli/internal/store"
	"github.com/cellarium/catalog-cli/pkg/aiextract"
	"github.com/cellarium/catalog-cli/pkg/proxyapi"
	"github.com/cellarium/catalog-cli/pkg/serpapi"
)

// openStore connects to Postgres using the configured pool limits.
func openStore(ctx context.Context) (*store.PostgresStore, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("store.database_url is not configured (set CATALOG_STORE_DATABASE_URL)")
	}
	return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
}

// newCostRecorder builds the metering recorder backed by the store.
func newCostRecorder(st *store.PostgresStore) *cost.Recorder {
	calc := cost.NewCalculator(cost.Rates{
		SerpAPIPerQueryCents: cfg.Pricing.SerpAPIPerQueryCents,
		ProxyPerRequestCents: cfg.Pricing.ProxyPerRequestCents,
		AIPerCallCents:       cfg.Pricing.AIPerCallCents,
	})
	return cost.NewRecorder(calc, st)
}

// newFetcher assembles the tier chain. The browser tier is optional and a
// startup failure there degrades to two tiers rather than aborting.
func newFetcher(st *store.PostgresStore, costs *cost.Recorder) *fetch.Router {
	tiers := []fetch.Tier{
		fetch.NewPlainTier(cfg.Fetch.UserAgent,
			time.Duration(cfg.Fetch.Tier1TimeoutSecs)*time.Second, cfg.Fetch.MaxBodyBytes),
	}

	if cfg.Browser.Enabled {
		browser, err := fetch.NewBrowserTier(cfg.Fetch.UserAgent, cfg.Browser.WaitUntil,
			time.Duration(cfg.Fetch.Tier2TimeoutSecs)*time.Second, cfg.Browser.MaxContexts)
		if err != nil {
			zap.L().Warn("browser tier unavailable, continuing without it", zap.Error(err))
		} else {
			tiers = append(tiers, browser)
		}
	}

	if cfg.Proxy.Key != "" {
		proxy := proxyapi.NewClient(cfg.Proxy.Key,
			proxyapi.WithBaseURL(cfg.Proxy.BaseURL),
			proxyapi.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Proxy.TimeoutSecs) * time.Second,
			}))
		tiers = append(tiers, fetch.NewProxyTier(proxy))
	}

	routerCfg := fetch.DefaultRouterConfig()
	if cfg.Fetch.Tier1MinBytes > 0 {
		routerCfg.MinBytes[1] = cfg.Fetch.Tier1MinBytes
	}
	if cfg.Fetch.Tier2MinBytes > 0 {
		routerCfg.MinBytes[2] = cfg.Fetch.Tier2MinBytes
	}
	if cfg.Fetch.Tier3MinBytes > 0 {
		routerCfg.MinBytes[3] = cfg.Fetch.Tier3MinBytes
	}
	return fetch.NewRouter(routerCfg, costs, st, tiers...)
}

// newSearch builds the filtered, metered search client.
func newSearch(costs *cost.Recorder) *search.Client {
	api := serpapi.NewClient(cfg.SerpAPI.Key,
		serpapi.WithBaseURL(cfg.SerpAPI.BaseURL),
		serpapi.WithLocale(cfg.SerpAPI.Language, cfg.SerpAPI.Country),
		serpapi.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.SerpAPI.TimeoutSecs) * time.Second,
		}))
	return search.NewClient(api, costs)
}

// newExtractor builds the AI extraction front-end.
func newExtractor(costs *cost.Recorder) *extract.Extractor {
	client := aiextract.NewClient(cfg.AIExtract.Key,
		aiextract.WithBaseURL(cfg.AIExtract.BaseURL),
		aiextract.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.AIExtract.TimeoutSecs) * time.Second,
		}))
	return extract.New(client, costs)
}

// newFrontier builds the crawl queue with a persisted seen-set.
func newFrontier(ctx context.Context) (*frontier.Frontier, error) {
	ttl := time.Duration(cfg.Frontier.SeenTTLDays) * 24 * time.Hour
	seen, err := frontier.NewSQLiteSeen(cfg.Frontier.SnapshotPath, ttl)
	if err != nil {
		return nil, eris.Wrap(err, "open seen-set")
	}
	f := frontier.New(seen, cfg.Frontier.DefaultRPM)
	f.StartSweeper(ctx, time.Hour)
	return f, nil
}

// loadHubConfigs reads the per-hub selector config file if present.
func loadHubConfigs() []hub.SiteConfig {
	data, err := os.ReadFile(cfg.Discovery.SelectorConfig)
	if err != nil {
		zap.L().Debug("no hub selector config, using generic selectors",
			zap.String("path", cfg.Discovery.SelectorConfig))
		return nil
	}
	configs, err := hub.LoadConfigs(data)
	if err != nil {
		zap.L().Warn("hub selector config unreadable, using generic selectors", zap.Error(err))
		return nil
	}
	return configs
}

