package app

// Diff holds the non-zero quantity changes between two snapshots.
//
// Deltas are end minus start, with absent keys counting as zero.
// Zero deltas are never materialized: an item whose quantity did not
// change between the two snapshots does not appear here, no matter how
// its market price moved in between.
type Diff struct {
	itemDeltas     map[ItemID]int
	currencyDeltas map[CurrencyID]int
}

// Compare returns the diff between two snapshots.
// It is a pure function and agnostic to the capture order of the
// snapshots: comparing in reverse order negates every delta.
func Compare(start, end *Snapshot) *Diff {
	return &Diff{
		itemDeltas:     subtract(end.items, start.items),
		currencyDeltas: subtract(end.currencies, start.currencies),
	}
}

// subtract returns b - a over the union of keys, keeping non-zero results only.
func subtract[K comparable](a, b map[K]int) map[K]int {
	deltas := make(map[K]int)
	for k, v := range b {
		if d := v - a[k]; d != 0 {
			deltas[k] = d
		}
	}
	for k, v := range a {
		if _, ok := b[k]; !ok && v != 0 {
			deltas[k] = -v
		}
	}
	return deltas
}

// IsEmpty reports whether the diff contains no changes at all.
func (d *Diff) IsEmpty() bool {
	return len(d.itemDeltas) == 0 && len(d.currencyDeltas) == 0
}

// ItemDelta returns the quantity change for an item or 0.
func (d *Diff) ItemDelta(id ItemID) int {
	return d.itemDeltas[id]
}

// CurrencyDelta returns the balance change for a currency or 0.
func (d *Diff) CurrencyDelta(id CurrencyID) int {
	return d.currencyDeltas[id]
}

// ItemIDs returns the ids of all items with a non-zero delta.
func (d *Diff) ItemIDs() []ItemID {
	ids := make([]ItemID, 0, len(d.itemDeltas))
	for id := range d.itemDeltas {
		ids = append(ids, id)
	}
	return ids
}

// ItemDeltas returns a copy of all item deltas.
func (d *Diff) ItemDeltas() map[ItemID]int {
	m := make(map[ItemID]int, len(d.itemDeltas))
	for id, v := range d.itemDeltas {
		m[id] = v
	}
	return m
}

// CurrencyDeltas returns a copy of all currency deltas.
func (d *Diff) CurrencyDeltas() map[CurrencyID]int {
	m := make(map[CurrencyID]int, len(d.currencyDeltas))
	for id, v := range d.currencyDeltas {
		m[id] = v
	}
	return m
}
