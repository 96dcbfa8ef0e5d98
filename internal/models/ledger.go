package models

// LedgerPrice is one counterpart's prices inside a ledger entry.
type LedgerPrice struct {
	Place      string    `json:"place"`
	Kerala     PriceInfo `json:"KERALA"`
	OutOfState PriceInfo `json:"OUT_OF_STATE"`
}

// LedgerEntry is one day's flattened price list for an item.
type LedgerEntry struct {
	Date   string        `json:"date"`
	Prices []LedgerPrice `json:"prices"`
}

// Ledger is the append-only price history of one item. Entries keep
// insertion order and never share a date.
type Ledger struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Data []LedgerEntry `json:"data"`
}

// NewLedger returns an empty ledger for the given item.
func NewLedger(key, name string) *Ledger {
	return &Ledger{ID: key, Name: name, Data: []LedgerEntry{}}
}

// HasDate reports whether an entry for date is already recorded.
func (l *Ledger) HasDate(date string) bool {
	for _, e := range l.Data {
		if e.Date == date {
			return true
		}
	}
	return false
}

// Append adds entry unless its date is already present. It reports whether
// the ledger changed.
func (l *Ledger) Append(entry LedgerEntry) bool {
	if l.HasDate(entry.Date) {
		return false
	}
	l.Data = append(l.Data, entry)
	return true
}

// Flatten turns a price map into ledger prices in map order.
func Flatten(prices *PriceMap) []LedgerPrice {
	out := make([]LedgerPrice, 0, prices.Len())
	for place, q := range prices.All() {
		out = append(out, LedgerPrice{
			Place:      place,
			Kerala:     q.Kerala,
			OutOfState: q.OutOfState,
		})
	}
	return out
}
