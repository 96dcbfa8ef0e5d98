package extract

import (
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rewired-gh/vegprice/internal/models"
)

// cells yields every td of every row of table.
func cells(table *goquery.Selection) iter.Seq[*goquery.Selection] {
	return func(yield func(*goquery.Selection) bool) {
		table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			cont := true
			row.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
				cont = yield(td)
				return cont
			})
			return cont
		})
	}
}

// linkedEntries keeps cells that link to an ID and carry some text.
func linkedEntries(in iter.Seq[*goquery.Selection]) iter.Seq[models.CatalogEntry] {
	return func(yield func(models.CatalogEntry) bool) {
		for td := range in {
			link := td.Find("a")
			href, _ := link.Attr("href")
			id := idFromHref(href)
			if id == "" {
				continue
			}
			title := strings.TrimSpace(link.Text())
			if title == "" {
				title = strings.TrimSpace(td.Text())
			}
			if title == "" {
				continue
			}
			if !yield(models.CatalogEntry{Title: title, ID: id}) {
				return
			}
		}
	}
}

// idFromHref returns whatever follows the first "ID=" in href.
func idFromHref(href string) string {
	_, id, found := strings.Cut(href, idMarker)
	if !found {
		return ""
	}
	return strings.TrimSpace(id)
}

// rows yields the rows of table after the first skip rows.
func rows(table *goquery.Selection, skip int) iter.Seq[*goquery.Selection] {
	return func(yield func(*goquery.Selection) bool) {
		table.Find("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
			if i < skip {
				return true
			}
			return yield(row)
		})
	}
}

// wellFormed yields the trimmed cell texts of rows with at least minCells
// cells. Shorter rows are source noise and are dropped without comment.
func wellFormed(in iter.Seq[*goquery.Selection], minCells int) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		for row := range in {
			tds := row.Find("td")
			if tds.Length() < minCells {
				continue
			}
			texts := make([]string, 0, tds.Length())
			tds.Each(func(_ int, td *goquery.Selection) {
				texts = append(texts, strings.TrimSpace(td.Text()))
			})
			if !yield(texts) {
				return
			}
		}
	}
}

// counterpart keeps rows whose first cell matches name case-insensitively.
// An empty name keeps every row.
func counterpart(in iter.Seq[[]string], name string) iter.Seq[[]string] {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return in
	}
	return func(yield func([]string) bool) {
		for row := range in {
			if strings.ToLower(row[0]) != want {
				continue
			}
			if !yield(row) {
				return
			}
		}
	}
}
