package health

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// StructuralFingerprint hashes the page's structural vocabulary: the set
// of class names, element ids, and data-* attribute names. Text content
// and attribute values are ignored, so the fingerprint is stable across
// content updates but shifts when the site's markup is rebuilt.
func StructuralFingerprint(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", eris.Wrap(err, "health: parse page")
	}

	names := map[string]bool{}
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		if cls, ok := sel.Attr("class"); ok {
			for _, c := range strings.Fields(cls) {
				names["."+c] = true
			}
		}
		if id, ok := sel.Attr("id"); ok && id != "" {
			names["#"+id] = true
		}
		for _, node := range sel.Nodes {
			for _, attr := range node.Attr {
				if strings.HasPrefix(attr.Key, "data-") {
					names["@"+attr.Key] = true
				}
			}
		}
	})

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	h := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(h[:]), nil
}

// FingerprintStore persists one fingerprint per source.
type FingerprintStore interface {
	GetSourceFingerprint(ctx context.Context, sourceID string) (string, error)
	SaveSourceFingerprint(ctx context.Context, sourceID, fingerprint string) error
}

// DriftDetector compares a page's structural fingerprint against the
// last one recorded for its source.
type DriftDetector struct {
	store FingerprintStore
}

func NewDriftDetector(st FingerprintStore) *DriftDetector {
	return &DriftDetector{store: st}
}

// Check fingerprints the page and reports whether the source's structure
// drifted since the last crawl. The new fingerprint is always persisted,
// so a drift fires once per rebuild, not on every subsequent page.
func (d *DriftDetector) Check(ctx context.Context, sourceID, html string) (bool, error) {
	fp, err := StructuralFingerprint(html)
	if err != nil {
		return false, err
	}

	prev, err := d.store.GetSourceFingerprint(ctx, sourceID)
	if err != nil {
		return false, err
	}
	if prev == fp {
		return false, nil
	}
	if err := d.store.SaveSourceFingerprint(ctx, sourceID, fp); err != nil {
		return false, err
	}
	// First observation is a baseline, not a drift.
	return prev != "", nil
}

// DriftAlert builds the critical alert for a structural change.
func DriftAlert(sourceID string) *Alert {
	return &Alert{
		Type:     AlertStructuralDrift,
		Severity: SeverityCritical,
		Message:  "page structure changed since the last crawl; selectors likely need review",
		SourceID: sourceID,
	}
}
