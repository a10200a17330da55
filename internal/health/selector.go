package health

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// SelectorCheck is one expectation against a page: the selector should
// match at least MinExpected elements.
type SelectorCheck struct {
	Selector    string `yaml:"selector"`
	MinExpected int    `yaml:"min_expected"`
}

// SelectorResult is the outcome of one check.
type SelectorResult struct {
	Selector    string `json:"selector"`
	Matched     int    `json:"matched"`
	MinExpected int    `json:"min_expected"`
	Healthy     bool   `json:"healthy"`
}

// SelectorReport aggregates all checks for one page. The page is healthy
// only while strictly more than half of its selectors are.
type SelectorReport struct {
	Results []SelectorResult `json:"results"`
	Healthy bool             `json:"healthy"`
}

// CheckSelectors evaluates every check against the page.
func CheckSelectors(html string, checks []SelectorCheck) (*SelectorReport, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "health: parse page")
	}

	report := &SelectorReport{}
	healthy := 0
	for _, c := range checks {
		min := c.MinExpected
		if min <= 0 {
			min = 1
		}
		matched := doc.Find(c.Selector).Length()
		ok := matched >= min
		if ok {
			healthy++
		}
		report.Results = append(report.Results, SelectorResult{
			Selector:    c.Selector,
			Matched:     matched,
			MinExpected: min,
			Healthy:     ok,
		})
	}
	report.Healthy = healthy*2 > len(checks)
	return report, nil
}

// DegradedAlert turns an unhealthy report into an alert, or nil.
func DegradedAlert(sourceID string, report *SelectorReport) *Alert {
	if report.Healthy {
		return nil
	}
	var broken []string
	for _, r := range report.Results {
		if !r.Healthy {
			broken = append(broken, r.Selector)
		}
	}
	return &Alert{
		Type:     AlertSelectorDegraded,
		Severity: SeverityWarning,
		Message:  "more than half of the configured selectors stopped matching",
		SourceID: sourceID,
		Details: map[string]any{
			"broken_selectors": broken,
			"total_selectors":  len(report.Results),
		},
	}
}
