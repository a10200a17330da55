// Package hub walks retailer hub pages that list many producers, turning
// them into brand entries and registered producer sources.
package hub

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/cellarium/catalog-cli/internal/model"
)

// SiteConfig selects the selectors for one hub domain. Loaded from YAML so
// new hubs are data, not code.
type SiteConfig struct {
	Domain        string `yaml:"domain"`
	BrandSelector string `yaml:"brand_selector"`
	NameSelector  string `yaml:"name_selector,omitempty"` // relative to brand; empty = link text
	ExternalAttr  string `yaml:"external_attr,omitempty"` // attribute holding an offsite URL
	Pagination    string `yaml:"pagination_selector,omitempty"`
}

// genericConfig is the fallback when no per-hub config matches: any link
// under a list-ish container.
var genericConfig = SiteConfig{
	BrandSelector: "ul li a[href], .brand-list a[href], .producer-list a[href]",
	Pagination:    "a[rel='next'], .pagination a[href]",
}

// navNoise is link text that is navigation, not a brand.
var navNoise = map[string]bool{
	"next": true, "prev": true, "previous": true, "home": true,
	"filter": true, "sort": true, "view all": true, "more": true,
	"back": true, "shop": true, "menu": true, "search": true,
}

// LoadConfigs parses per-hub selector configs from YAML.
func LoadConfigs(data []byte) ([]SiteConfig, error) {
	var wrapper struct {
		Hubs []SiteConfig `yaml:"hubs"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "hub: parse site configs")
	}
	return wrapper.Hubs, nil
}

// Parser turns hub pages into brand entries plus pagination URLs.
type Parser struct {
	configs []SiteConfig
}

func NewParser(configs []SiteConfig) *Parser {
	return &Parser{configs: configs}
}

// ParseResult is the outcome of parsing one hub page.
type ParseResult struct {
	Brands     []model.BrandEntry
	Pagination []string
}

// Parse extracts brand entries from one hub page. The config whose domain
// suffix-matches the page host wins; otherwise the generic fallback runs.
func (p *Parser) Parse(html, pageURL string) (*ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "hub: parse %s", pageURL)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "hub: bad page url %s", pageURL)
	}
	host := strings.TrimPrefix(strings.ToLower(base.Hostname()), "www.")

	cfg := p.configFor(host)
	out := &ParseResult{}
	seen := map[string]bool{}

	doc.Find(cfg.BrandSelector).Each(func(_ int, sel *goquery.Selection) {
		entry := extractBrand(sel, cfg, base, host)
		if entry == nil || seen[strings.ToLower(entry.Name)] {
			return
		}
		seen[strings.ToLower(entry.Name)] = true
		out.Brands = append(out.Brands, *entry)
	})

	if cfg.Pagination != "" {
		pseen := map[string]bool{}
		doc.Find(cfg.Pagination).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}
			abs := resolveURL(base, href)
			if abs != "" && abs != pageURL && !pseen[abs] {
				pseen[abs] = true
				out.Pagination = append(out.Pagination, abs)
			}
		})
	}
	return out, nil
}

func (p *Parser) configFor(host string) SiteConfig {
	for _, cfg := range p.configs {
		if cfg.Domain != "" && (host == cfg.Domain || strings.HasSuffix(host, "."+cfg.Domain)) {
			if cfg.Pagination == "" {
				cfg.Pagination = genericConfig.Pagination
			}
			return cfg
		}
	}
	return genericConfig
}

func extractBrand(sel *goquery.Selection, cfg SiteConfig, base *url.URL, hubHost string) *model.BrandEntry {
	name := strings.TrimSpace(sel.Text())
	if cfg.NameSelector != "" {
		name = strings.TrimSpace(sel.Find(cfg.NameSelector).First().Text())
	}
	if len(name) < 2 || navNoise[strings.ToLower(name)] {
		return nil
	}

	href, _ := sel.Attr("href")
	abs := resolveURL(base, href)
	if abs == "" {
		return nil
	}

	entry := &model.BrandEntry{Name: name, HubDomain: hubHost}
	if external := externalURL(sel, cfg, abs, hubHost); external != "" {
		entry.ExternalURL = external
		entry.HubURL = abs
		if !sameHost(abs, hubHost) {
			entry.HubURL = ""
		}
	} else {
		entry.HubURL = abs
	}
	return entry
}

// externalURL finds an offsite producer link: either a configured
// attribute or the href itself when it leaves the hub's domain.
func externalURL(sel *goquery.Selection, cfg SiteConfig, absHref, hubHost string) string {
	if cfg.ExternalAttr != "" {
		if v, ok := sel.Attr(cfg.ExternalAttr); ok && v != "" {
			return v
		}
	}
	if !sameHost(absHref, hubHost) {
		return absHref
	}
	return ""
}

func sameHost(rawURL, hubHost string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	h := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return h == hubHost || strings.HasSuffix(h, "."+hubHost)
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
