package models

// PriceInfo is a wholesale/retail price pair. Values are kept as published,
// including placeholders like "-".
type PriceInfo struct {
	WP string `json:"wp"`
	RP string `json:"rp"`
}

// PriceQuadruple holds prices for in-state and out-of-state produce.
type PriceQuadruple struct {
	Kerala     PriceInfo `json:"KERALA"`
	OutOfState PriceInfo `json:"OUT_OF_STATE"`
}

// PriceMap maps a counterpart name (a market when keyed by item, an item when
// keyed by market) to its prices, in the order the source listed them.
type PriceMap = OrderedMap[PriceQuadruple]

// PriceResponse is a price map together with its publication date and, for
// lookups against the live snapshot, the matched display name.
type PriceResponse struct {
	Data PriceMap `json:"data"`
	Date *string  `json:"date"`
	Name string   `json:"name,omitempty"`
}

// LiveItem is one item's entry in the live snapshot file.
type LiveItem struct {
	Name        string   `json:"name"`
	Data        PriceMap `json:"data"`
	LastUpdated *string  `json:"lastUpdated"`
}

// Snapshot is the current-day price state across all items, keyed by
// canonical item key, with the run's date of record.
type Snapshot struct {
	Data OrderedMap[LiveItem] `json:"data"`
	Date *string              `json:"date"`
}
