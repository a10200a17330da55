package competition

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cellarium/catalog-cli/internal/model"
)

// headerAliases maps table header text onto record fields.
var headerAliases = map[string]string{
	"product":    "name",
	"name":       "name",
	"wine":       "name",
	"whisky":     "name",
	"whiskey":    "name",
	"brand":      "name",
	"entry":      "name",
	"medal":      "medal",
	"award":      "medal",
	"result":     "medal",
	"producer":   "producer",
	"company":    "producer",
	"distillery": "producer",
	"house":      "producer",
	"category":   "category",
	"class":      "category",
	"style":      "category",
	"type":       "category",
	"country":    "country",
	"origin":     "country",
	"score":      "score",
	"points":     "score",
}

// parseGenericTables is the last-resort walker: find any table whose
// header row names a product column and a medal column, then map cells by
// header position.
func parseGenericTables(doc *goquery.Document, comp string, year int) []model.AwardRecord {
	var recs []model.AwardRecord

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		cols := headerColumns(table)
		if cols["name"] < 0 || cols["medal"] < 0 {
			return true // keep scanning
		}

		table.Find("tbody tr, tr").Each(func(i int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() == 0 {
				return
			}
			rec := model.AwardRecord{Competition: comp, Year: year}
			rec.ProductName = cellText(cells, cols["name"])
			rec.Medal = cellText(cells, cols["medal"])
			rec.Producer = cellText(cells, cols["producer"])
			rec.Category = cellText(cells, cols["category"])
			rec.Country = cellText(cells, cols["country"])
			if s := cellText(cells, cols["score"]); s != "" {
				rec.Score = parseScore(s)
			}
			if acceptRecord(&rec) {
				recs = append(recs, rec)
			}
		})
		return len(recs) == 0
	})
	return recs
}

// headerColumns resolves each known field to a column index, -1 if absent.
func headerColumns(table *goquery.Selection) map[string]int {
	cols := map[string]int{
		"name": -1, "medal": -1, "producer": -1,
		"category": -1, "country": -1, "score": -1,
	}
	table.Find("thead th, tr th").Each(func(i int, th *goquery.Selection) {
		h := strings.ToLower(strings.TrimSpace(th.Text()))
		for alias, field := range headerAliases {
			if strings.Contains(h, alias) && cols[field] < 0 {
				cols[field] = i
			}
		}
	})
	return cols
}

func cellText(cells *goquery.Selection, idx int) string {
	if idx < 0 || idx >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(idx).Text())
}
