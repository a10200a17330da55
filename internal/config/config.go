package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Fetch        FetchConfig        `yaml:"fetch" mapstructure:"fetch"`
	Browser      BrowserConfig      `yaml:"browser" mapstructure:"browser"`
	Proxy        ProxyConfig        `yaml:"proxy" mapstructure:"proxy"`
	SerpAPI      SerpAPIConfig      `yaml:"serpapi" mapstructure:"serpapi"`
	AIExtract    AIExtractConfig    `yaml:"ai_extract" mapstructure:"ai_extract"`
	Frontier     FrontierConfig     `yaml:"frontier" mapstructure:"frontier"`
	Discovery    DiscoveryConfig    `yaml:"discovery" mapstructure:"discovery"`
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	Monitoring   MonitoringConfig   `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing      PricingConfig      `yaml:"pricing" mapstructure:"pricing"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// FetchConfig configures the tiered fetch router.
type FetchConfig struct {
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	Tier1TimeoutSecs int    `yaml:"tier1_timeout_secs" mapstructure:"tier1_timeout_secs"`
	Tier2TimeoutSecs int    `yaml:"tier2_timeout_secs" mapstructure:"tier2_timeout_secs"`
	Tier1MinBytes    int    `yaml:"tier1_min_bytes" mapstructure:"tier1_min_bytes"`
	Tier2MinBytes    int    `yaml:"tier2_min_bytes" mapstructure:"tier2_min_bytes"`
	Tier3MinBytes    int    `yaml:"tier3_min_bytes" mapstructure:"tier3_min_bytes"`
	MaxBodyBytes     int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// BrowserConfig configures the Tier 2 headless browser.
type BrowserConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	WaitUntil   string `yaml:"wait_until" mapstructure:"wait_until"`
	MaxContexts int    `yaml:"max_contexts" mapstructure:"max_contexts"`
}

// ProxyConfig configures the Tier 3 managed proxy service.
type ProxyConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SerpAPIConfig configures the web search client.
type SerpAPIConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Engine      string `yaml:"engine" mapstructure:"engine"`
	Language    string `yaml:"hl" mapstructure:"hl"`
	Country     string `yaml:"gl" mapstructure:"gl"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AIExtractConfig configures the external AI extraction service.
type AIExtractConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FrontierConfig configures the URL frontier.
type FrontierConfig struct {
	SnapshotPath   string `yaml:"snapshot_path" mapstructure:"snapshot_path"`
	SeenTTLDays    int    `yaml:"seen_ttl_days" mapstructure:"seen_ttl_days"`
	DefaultRPM     int    `yaml:"default_rpm" mapstructure:"default_rpm"`
}

// DiscoveryConfig configures the hub and competition orchestrators.
type DiscoveryConfig struct {
	HubMaxPages       int    `yaml:"hub_max_pages" mapstructure:"hub_max_pages"`
	MaxConcurrent     int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	SelectorConfig    string `yaml:"selector_config" mapstructure:"selector_config"`
	YieldMinPerPage   int    `yaml:"yield_min_per_page" mapstructure:"yield_min_per_page"`
	YieldAbortAfter   int    `yaml:"yield_abort_after" mapstructure:"yield_abort_after"`
}

// VerificationConfig configures the enrichment pipeline.
type VerificationConfig struct {
	TargetSources      int `yaml:"target_sources" mapstructure:"target_sources"`
	MinVerifiedSources int `yaml:"min_verified_sources" mapstructure:"min_verified_sources"`
	SearchResults      int `yaml:"search_results" mapstructure:"search_results"`
	MaxConcurrent      int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// MonitoringConfig configures alerting and the background checker.
type MonitoringConfig struct {
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdCents  int     `yaml:"cost_threshold_cents" mapstructure:"cost_threshold_cents"`
}

// PricingConfig holds per-service rates in cents.
type PricingConfig struct {
	SerpAPIPerQueryCents int `yaml:"serpapi_per_query_cents" mapstructure:"serpapi_per_query_cents"`
	ProxyPerRequestCents int `yaml:"proxy_per_request_cents" mapstructure:"proxy_per_request_cents"`
	AIPerCallCents       int `yaml:"ai_per_call_cents" mapstructure:"ai_per_call_cents"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                int `yaml:"port" mapstructure:"port"`
	ExtractionPerHour   int `yaml:"extraction_per_hour" mapstructure:"extraction_per_hour"`
	CrawlTriggerPerHour int `yaml:"crawl_trigger_per_hour" mapstructure:"crawl_trigger_per_hour"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.extraction_per_hour", 50)
	v.SetDefault("server.crawl_trigger_per_hour", 10)
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("fetch.tier1_timeout_secs", 30)
	v.SetDefault("fetch.tier2_timeout_secs", 60)
	v.SetDefault("fetch.tier1_min_bytes", 512)
	v.SetDefault("fetch.tier2_min_bytes", 256)
	v.SetDefault("fetch.tier3_min_bytes", 128)
	v.SetDefault("fetch.max_body_bytes", 2*1024*1024)
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.wait_until", "networkidle")
	v.SetDefault("browser.max_contexts", 4)
	v.SetDefault("proxy.base_url", "https://api.scrapingbee.com/v1")
	v.SetDefault("proxy.timeout_secs", 90)
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("serpapi.engine", "google")
	v.SetDefault("serpapi.hl", "en")
	v.SetDefault("serpapi.gl", "us")
	v.SetDefault("serpapi.timeout_secs", 30)
	v.SetDefault("ai_extract.timeout_secs", 30)
	v.SetDefault("frontier.snapshot_path", "frontier.db")
	v.SetDefault("frontier.seen_ttl_days", 30)
	v.SetDefault("frontier.default_rpm", 12)
	v.SetDefault("discovery.hub_max_pages", 25)
	v.SetDefault("discovery.max_concurrent", 5)
	v.SetDefault("discovery.selector_config", "selectors.yaml")
	v.SetDefault("discovery.yield_min_per_page", 10)
	v.SetDefault("discovery.yield_abort_after", 3)
	v.SetDefault("verification.target_sources", 3)
	v.SetDefault("verification.min_verified_sources", 2)
	v.SetDefault("verification.search_results", 10)
	v.SetDefault("verification.max_concurrent", 4)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.cost_threshold_cents", 5000)
	v.SetDefault("pricing.serpapi_per_query_cents", 1)
	v.SetDefault("pricing.proxy_per_request_cents", 2)
	v.SetDefault("pricing.ai_per_call_cents", 1)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
