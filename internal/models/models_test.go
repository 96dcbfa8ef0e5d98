package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Tomato", "tomato"},
		{"Banana (Nendran)", "banana__nendran_"},
		{"  Banana (Nendran) ", "banana__nendran_"},
		{"Ash-Gourd", "ash-gourd"},
		{"Green Chilli/Kg", "green_chilli_kg"},
		{"Snake_Gourd", "snake_gourd"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CanonicalKey(tt.input); got != tt.expected {
				t.Errorf("CanonicalKey(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalKey_Stable(t *testing.T) {
	first := CanonicalKey("Banana (Nendran)")
	for i := 0; i < 10; i++ {
		if got := CanonicalKey("Banana (Nendran)"); got != first {
			t.Fatalf("key changed between calls: %q vs %q", got, first)
		}
	}
}

func TestCatalogFind(t *testing.T) {
	c := Catalog{Data: []CatalogEntry{
		{Title: "Tomato", ID: "42"},
		{Title: "Banana (Nendran)", ID: "7"},
	}}

	tests := []struct {
		name   string
		query  string
		wantID string
		found  bool
	}{
		{"exact", "Tomato", "42", true},
		{"case and spaces", "  tomato ", "42", true},
		{"canonical key", "banana__nendran_", "7", true},
		{"missing", "Onion", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := c.Find(tt.query)
			if ok != tt.found {
				t.Fatalf("Find(%q) found = %v, want %v", tt.query, ok, tt.found)
			}
			if e.ID != tt.wantID {
				t.Errorf("Find(%q) id = %q, want %q", tt.query, e.ID, tt.wantID)
			}
		})
	}
}

func TestCatalogEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   CatalogEntry
		wantErr bool
	}{
		{"valid", CatalogEntry{Title: "Tomato", ID: "42"}, false},
		{"empty title", CatalogEntry{Title: " ", ID: "42"}, true},
		{"empty id", CatalogEntry{Title: "Tomato", ID: ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSameDate(t *testing.T) {
	a, b, c := "2024-01-01", "2024-01-01", "2024-01-02"
	if !SameDate(&a, &b) {
		t.Error("equal dates should match")
	}
	if SameDate(&a, &c) {
		t.Error("different dates should not match")
	}
	if SameDate(nil, nil) {
		t.Error("two unknown dates should not match")
	}
	if SameDate(&a, nil) {
		t.Error("known and unknown dates should not match")
	}
}

func TestOrderedMap_KeepsInsertionOrder(t *testing.T) {
	var m OrderedMap[int]
	m.Set("zeta", 1)
	m.Set("alpha", 2)
	m.Set("mid", 3)
	m.Set("zeta", 4)

	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
	if got := strings.Join(m.Keys(), ","); got != "zeta,alpha,mid" {
		t.Errorf("Keys() = %s", got)
	}
	if v, _ := m.Get("zeta"); v != 4 {
		t.Errorf("last write should win, got %d", v)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"zeta":4,"alpha":2,"mid":3}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var back OrderedMap[int]
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := strings.Join(back.Keys(), ","); got != "zeta,alpha,mid" {
		t.Errorf("order lost after round trip: %s", got)
	}
}

func TestOrderedMap_NoHTMLEscaping(t *testing.T) {
	var m OrderedMap[string]
	m.Set("A & B", "<x>")
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"A & B"`) {
		t.Errorf("key was escaped: %s", data)
	}
}

func TestOrderedMap_UnmarshalRejectsArray(t *testing.T) {
	var m OrderedMap[int]
	if err := json.Unmarshal([]byte(`[1,2]`), &m); err == nil {
		t.Error("expected error for JSON array")
	}
}

func TestLedgerAppend_UniqueDates(t *testing.T) {
	l := NewLedger("tomato", "Tomato")
	entry := LedgerEntry{Date: "2024-01-01", Prices: []LedgerPrice{{Place: "Thrissur"}}}

	if !l.Append(entry) {
		t.Fatal("first append should change the ledger")
	}
	for i := 0; i < 3; i++ {
		if l.Append(entry) {
			t.Fatal("append with an existing date should be a no-op")
		}
	}
	if len(l.Data) != 1 {
		t.Errorf("got %d entries, want 1", len(l.Data))
	}
	if !l.Append(LedgerEntry{Date: "2024-01-02"}) {
		t.Error("new date should be appended")
	}
}

func TestFlatten_MapOrder(t *testing.T) {
	var prices PriceMap
	prices.Set("Thrissur", PriceQuadruple{Kerala: PriceInfo{WP: "20", RP: "25"}, OutOfState: PriceInfo{WP: "22", RP: "27"}})
	prices.Set("Kochi", PriceQuadruple{Kerala: PriceInfo{WP: "-", RP: "-"}})

	flat := Flatten(&prices)
	if len(flat) != 2 {
		t.Fatalf("got %d prices, want 2", len(flat))
	}
	if flat[0].Place != "Thrissur" || flat[1].Place != "Kochi" {
		t.Errorf("unexpected order: %s, %s", flat[0].Place, flat[1].Place)
	}
	if flat[0].OutOfState.RP != "27" {
		t.Errorf("OUT_OF_STATE rp = %q, want 27", flat[0].OutOfState.RP)
	}
}

func TestRunValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		run     Run
		wantErr bool
	}{
		{
			name:    "valid run",
			run:     Run{ID: "r1", Status: RunUpdated, StartedAt: now, FinishedAt: now.Add(time.Second), ItemsTotal: 3, ItemsOK: 2},
			wantErr: false,
		},
		{
			name:    "empty ID",
			run:     Run{Status: RunUpdated, StartedAt: now, FinishedAt: now},
			wantErr: true,
		},
		{
			name:    "unknown status",
			run:     Run{ID: "r1", Status: "weird", StartedAt: now, FinishedAt: now},
			wantErr: true,
		},
		{
			name:    "finished before start",
			run:     Run{ID: "r1", Status: RunSkipped, StartedAt: now, FinishedAt: now.Add(-time.Second)},
			wantErr: true,
		},
		{
			name:    "more ok than total",
			run:     Run{ID: "r1", Status: RunUpdated, StartedAt: now, FinishedAt: now, ItemsTotal: 1, ItemsOK: 2},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Run.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
