// Package models defines the core domain entities: catalogs, price maps,
// snapshots and historic ledgers.
package models

import (
	"errors"
	"regexp"
	"strings"
)

// CatalogKind names one of the two identity catalogs published by the source.
type CatalogKind string

const (
	CatalogItems   CatalogKind = "items"
	CatalogMarkets CatalogKind = "markets"
)

// Valid reports whether k is a known catalog kind.
func (k CatalogKind) Valid() bool {
	return k == CatalogItems || k == CatalogMarkets
}

// CatalogEntry is a tradable item or a market as listed by the source.
// ID is the source's stable identifier; Title is for display and matching.
type CatalogEntry struct {
	Title string `json:"title"`
	ID    string `json:"id"`
}

// Catalog is an ordered list of entries in source table order together with
// the source's self-reported publication date (nil when unknown).
type Catalog struct {
	Data []CatalogEntry `json:"data"`
	Date *string        `json:"date"`
}

// Find returns the first entry whose trimmed title equals name,
// case-insensitively, or whose canonical key equals name.
func (c *Catalog) Find(name string) (CatalogEntry, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, e := range c.Data {
		if strings.ToLower(strings.TrimSpace(e.Title)) == want {
			return e, true
		}
	}
	key := CanonicalKey(name)
	for _, e := range c.Data {
		if CanonicalKey(e.Title) == key {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// Validate checks the entry can be used to address a source page.
func (e CatalogEntry) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("catalog entry title must not be empty")
	}
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("catalog entry id must not be empty")
	}
	return nil
}

var nonKeyChars = regexp.MustCompile(`[^\w-]`)

// CanonicalKey derives the lookup and filename key for an item title:
// surrounding whitespace is dropped, every character outside [A-Za-z0-9_-]
// becomes '_' and the result is lowercased.
func CanonicalKey(title string) string {
	return strings.ToLower(nonKeyChars.ReplaceAllString(strings.TrimSpace(title), "_"))
}

// DateString renders a nullable date for logs and messages.
func DateString(d *string) string {
	if d == nil {
		return "<none>"
	}
	return *d
}

// SameDate reports whether two nullable dates are both set and equal.
// Two unknown dates are never considered the same publication.
func SameDate(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}
