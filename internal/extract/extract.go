// Package extract turns the source's loosely structured listing pages into
// catalogs and price maps.
//
// Layout noise (cells without links, short rows, header rows) is removed by
// small iterator stages so each rule can be exercised against hand-written
// markup without touching the network.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rewired-gh/vegprice/internal/models"
)

const (
	// PriceTableIndex is where per-item and per-market pages put the prices.
	PriceTableIndex = 1
	// priceHeaderRows precede the data rows of a price table.
	priceHeaderRows = 2
	// priceColumns is the minimum cell count of a usable price row.
	priceColumns = 5

	idMarker = "ID="
)

// ErrTableNotFound is returned when the requested table index does not exist.
var ErrTableNotFound = errors.New("table not found")

// RE2's \s is ASCII only; the source pads dates with &nbsp; (U+00A0).
var (
	dateLabel  = regexp.MustCompile(`^Date:[\s\p{Zs}]*`)
	whitespace = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// Parse loads raw markup into a queryable document.
func Parse(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}
	return doc, nil
}

// Catalog reads the (title, id) pairs out of the table at tableIndex, in
// document order, along with the page's publication date.
func Catalog(markup string, tableIndex int) (models.Catalog, error) {
	doc, err := Parse(markup)
	if err != nil {
		return models.Catalog{}, err
	}
	table, err := tableAt(doc, tableIndex)
	if err != nil {
		return models.Catalog{}, err
	}

	entries := []models.CatalogEntry{}
	for e := range linkedEntries(cells(table)) {
		entries = append(entries, e)
	}
	return models.Catalog{Data: entries, Date: Date(doc)}, nil
}

// Date returns the publication date printed in bold inside the first table,
// without its "Date:" label and with whitespace runs collapsed. It returns nil
// when the page carries no date.
func Date(doc *goquery.Document) *string {
	bold := doc.Find("table").First().Find("strong, b").First()
	if bold.Length() == 0 {
		return nil
	}
	text := strings.TrimSpace(bold.Text())
	text = dateLabel.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	if text == "" {
		return nil
	}
	return &text
}

// Prices reads the price table of a per-item or per-market page. When filter
// is non-empty only the counterpart whose trimmed name equals it,
// case-insensitively, is kept.
func Prices(markup string, filter string) (models.PriceResponse, error) {
	doc, err := Parse(markup)
	if err != nil {
		return models.PriceResponse{}, err
	}
	table, err := tableAt(doc, PriceTableIndex)
	if err != nil {
		return models.PriceResponse{}, err
	}

	var prices models.PriceMap
	for row := range counterpart(wellFormed(rows(table, priceHeaderRows), priceColumns), filter) {
		prices.Set(row[0], models.PriceQuadruple{
			Kerala:     models.PriceInfo{WP: row[1], RP: row[2]},
			OutOfState: models.PriceInfo{WP: row[3], RP: row[4]},
		})
	}
	return models.PriceResponse{Data: prices, Date: Date(doc)}, nil
}

func tableAt(doc *goquery.Document, index int) (*goquery.Selection, error) {
	tables := doc.Find("table")
	if index < 0 || index >= tables.Length() {
		return nil, fmt.Errorf("%w: index %d of %d", ErrTableNotFound, index, tables.Length())
	}
	return tables.Eq(index), nil
}
