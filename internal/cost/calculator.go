package cost

// Rates holds per-service pricing in integer cents.
type Rates struct {
	SerpAPIPerQueryCents int `yaml:"serpapi_per_query_cents" mapstructure:"serpapi_per_query_cents"`
	ProxyPerRequestCents int `yaml:"proxy_per_request_cents" mapstructure:"proxy_per_request_cents"`
	AIPerCallCents       int `yaml:"ai_per_call_cents" mapstructure:"ai_per_call_cents"`
}

// Calculator computes costs for external service usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// SerpAPIQuery returns the cost of one search query.
func (c *Calculator) SerpAPIQuery() int {
	return c.rates.SerpAPIPerQueryCents
}

// ProxyRequest returns the cost of one managed-proxy request.
func (c *Calculator) ProxyRequest() int {
	return c.rates.ProxyPerRequestCents
}

// AICall returns the cost of one AI extraction call.
func (c *Calculator) AICall() int {
	return c.rates.AIPerCallCents
}

// Tier returns the per-request cost for a fetch tier. Tiers 1 and 2 run on
// our own infrastructure and are free; Tier 3 is billed per request.
func (c *Calculator) Tier(tier int) int {
	if tier == 3 {
		return c.rates.ProxyPerRequestCents
	}
	return 0
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		SerpAPIPerQueryCents: 1,
		ProxyPerRequestCents: 2,
		AIPerCallCents:       1,
	}
}
