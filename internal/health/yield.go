package health

// Yield monitor defaults: abort after 3 consecutive pages yielding fewer
// than 10 products each.
const (
	DefaultMinPerPage  = 10
	DefaultMaxLowPages = 3
)

// YieldMonitor watches per-page product counts during a crawl and signals
// abort when too many consecutive pages come up short. A single healthy
// page resets the run.
type YieldMonitor struct {
	minPerPage  int
	maxLowPages int
	lowRun      int
}

func NewYieldMonitor(minPerPage, maxLowPages int) *YieldMonitor {
	if minPerPage <= 0 {
		minPerPage = DefaultMinPerPage
	}
	if maxLowPages <= 0 {
		maxLowPages = DefaultMaxLowPages
	}
	return &YieldMonitor{minPerPage: minPerPage, maxLowPages: maxLowPages}
}

// Observe records one page's yield and reports whether the crawl should
// abort.
func (m *YieldMonitor) Observe(productCount int) bool {
	if productCount >= m.minPerPage {
		m.lowRun = 0
		return false
	}
	m.lowRun++
	return m.lowRun >= m.maxLowPages
}

// LowRun returns the current streak of under-yielding pages.
func (m *YieldMonitor) LowRun() int { return m.lowRun }

// YieldAlert builds the alert emitted when a crawl aborts on low yield.
func YieldAlert(sourceID string, lowPages, minPerPage int) *Alert {
	return &Alert{
		Type:     AlertYieldCollapse,
		Severity: SeverityCritical,
		Message:  "crawl aborted: consecutive pages yielded too few products",
		SourceID: sourceID,
		Details: map[string]any{
			"low_pages":    lowPages,
			"min_per_page": minPerPage,
		},
	}
}
