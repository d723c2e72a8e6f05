// Package app is the root package of all domain related packages.
//
// All entity types are defined in this package.
// Snapshots, diffs and valuation reports are value types:
// they are fully constructed once and never mutated afterwards,
// so they can be shared between goroutines without locking.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalid signals a precondition violation and should be treated as a programming error.
	ErrInvalid = errors.New("invalid parameters")
	// ErrNotFound signals that an object could not be found.
	ErrNotFound = errors.New("object not found")
)

// ItemID is the numeric ID of an item as used by the GW2 API.
type ItemID int32

// CurrencyID is the numeric ID of a wallet currency as used by the GW2 API.
type CurrencyID int32

// CoinCurrencyID is the wallet currency holding regular coin,
// denominated in copper.
const CoinCurrencyID CurrencyID = 1

// Snapshot is the aggregated state of an account at one point in time.
//
// Items holds the total quantity per item across all storage locations
// (bank, material storage, shared inventory, character inventories and
// equipment). Currencies holds the wallet balances. Both maps only
// contain non-zero quantities.
type Snapshot struct {
	capturedAt time.Time
	items      map[ItemID]int
	currencies map[CurrencyID]int
}

// NewSnapshot returns a new snapshot from raw quantity maps.
// The maps are copied and zero quantities are dropped,
// so the snapshot stays valid when the arguments are modified later.
func NewSnapshot(capturedAt time.Time, items map[ItemID]int, currencies map[CurrencyID]int) *Snapshot {
	s := &Snapshot{
		capturedAt: capturedAt.UTC(),
		items:      make(map[ItemID]int, len(items)),
		currencies: make(map[CurrencyID]int, len(currencies)),
	}
	for id, q := range items {
		if q != 0 {
			s.items[id] = q
		}
	}
	for id, a := range currencies {
		if a != 0 {
			s.currencies[id] = a
		}
	}
	return s
}

// CapturedAt returns the time the capture of this snapshot was started.
func (s *Snapshot) CapturedAt() time.Time {
	return s.capturedAt
}

// Item returns the total quantity of an item or 0 when the account holds none.
func (s *Snapshot) Item(id ItemID) int {
	return s.items[id]
}

// Currency returns a wallet balance or 0 when the account holds none.
func (s *Snapshot) Currency(id CurrencyID) int {
	return s.currencies[id]
}

// Items returns a copy of the item quantities.
func (s *Snapshot) Items() map[ItemID]int {
	m := make(map[ItemID]int, len(s.items))
	for id, q := range s.items {
		m[id] = q
	}
	return m
}

// Currencies returns a copy of the wallet balances.
func (s *Snapshot) Currencies() map[CurrencyID]int {
	m := make(map[CurrencyID]int, len(s.currencies))
	for id, a := range s.currencies {
		m[id] = a
	}
	return m
}

func (s *Snapshot) String() string {
	return fmt.Sprintf(
		"Snapshot{%s, %d items, %d currencies}",
		s.capturedAt.Format(time.RFC3339), len(s.items), len(s.currencies),
	)
}

// snapshotJSON is the serialization contract for the persistence collaborator.
type snapshotJSON struct {
	CapturedAt time.Time          `json:"captured_at"`
	Items      map[ItemID]int     `json:"items"`
	Currencies map[CurrencyID]int `json:"currencies"`
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		CapturedAt: s.capturedAt,
		Items:      s.items,
		Currencies: s.currencies,
	})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var x snapshotJSON
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	*s = *NewSnapshot(x.CapturedAt, x.Items, x.Currencies)
	return nil
}

// ItemInfo is static reference data about an item.
type ItemInfo struct {
	ID          ItemID
	Name        string
	VendorValue int // coin when sold to a merchant, 0 when the item can not be sold
}
