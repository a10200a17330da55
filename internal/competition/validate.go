package competition

import (
	"regexp"
	"strconv"
	"strings"
)

// negativeTokens mark rows that name a producer or venue rather than a
// bottled product.
var negativeTokens = []string{
	"winery", "vineyard", "chateau", "château", "domaine", "bodega", "wine cellar",
}

var corporateSuffix = regexp.MustCompile(`(?i)\b(inc|ltd|llc|plc|gmbh|s\.?a\.?)\.?$`)

// ValidProductName rejects entries that are clearly not products: too
// short, producer-only names, corporate entities. Port-tagged names keep
// their wine-adjacent tokens.
func ValidProductName(name string) bool {
	n := strings.TrimSpace(name)
	if len(n) < 3 {
		return false
	}
	lower := strings.ToLower(n)

	if !strings.Contains(lower, "port") {
		for _, tok := range negativeTokens {
			if strings.Contains(lower, tok) {
				return false
			}
		}
	}
	if corporateSuffix.MatchString(n) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

var scorePattern = regexp.MustCompile(`(\d{2,3}(?:\.\d+)?)`)

// parseScore pulls a numeric score out of strings like "96 points" or
// "Score: 92.5". Zero when absent or implausible.
func parseScore(s string) float64 {
	m := scorePattern.FindString(s)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || f > 100 {
		return 0
	}
	return f
}
