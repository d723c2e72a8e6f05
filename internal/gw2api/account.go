package gw2api

import (
	"context"
	"fmt"

	"github.com/krashnark/gw2tracker/internal/app"
)

// slot is one inventory or bank slot. Empty slots are null in the API
// and decoded as nil pointers by the callers.
type slot struct {
	ID      app.ItemID `json:"id"`
	Count   int        `json:"count"`
	Charges int        `json:"charges"`
	Value   int        `json:"value"`
}

// quantity returns the canonical quantity of a slot.
// Charged items report their remaining charges instead of a count
// and wallet entries report a value; charges take precedence because
// charged items do not stack.
func (s slot) quantity() int {
	switch {
	case s.Charges != 0:
		return s.Charges
	case s.Count != 0:
		return s.Count
	}
	return s.Value
}

// addSlots merges non-empty slots into quantities keyed by item id.
// The merge rule is the single canonicalization point for all storage
// locations: identical item ids are summed, empty slots and zero
// quantities are dropped.
func addSlots(quantities map[app.ItemID]int, slots []*slot) error {
	for _, s := range slots {
		if s == nil {
			continue
		}
		if s.ID == 0 {
			return fmt.Errorf("slot without item id: %w", ErrMalformed)
		}
		if q := s.quantity(); q != 0 {
			quantities[s.ID] += q
		}
	}
	return nil
}

// Wallet returns the wallet balances of the account.
func (c *Client) Wallet(ctx context.Context, key string) (map[app.CurrencyID]int, error) {
	var rows []struct {
		ID    app.CurrencyID `json:"id"`
		Value int            `json:"value"`
	}
	if err := c.get(ctx, "/account/wallet", key, &rows); err != nil {
		return nil, err
	}
	balances := make(map[app.CurrencyID]int, len(rows))
	for _, r := range rows {
		if r.Value != 0 {
			balances[r.ID] += r.Value
		}
	}
	return balances, nil
}

// Bank returns the item quantities in the account bank.
func (c *Client) Bank(ctx context.Context, key string) (map[app.ItemID]int, error) {
	return c.slotResource(ctx, "/account/bank", key)
}

// SharedInventory returns the item quantities in the shared inventory slots.
func (c *Client) SharedInventory(ctx context.Context, key string) (map[app.ItemID]int, error) {
	return c.slotResource(ctx, "/account/inventory", key)
}

func (c *Client) slotResource(ctx context.Context, path string, key string) (map[app.ItemID]int, error) {
	var slots []*slot
	if err := c.get(ctx, path, key, &slots); err != nil {
		return nil, err
	}
	quantities := make(map[app.ItemID]int)
	if err := addSlots(quantities, slots); err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return quantities, nil
}

// Materials returns the item quantities in the material storage.
// The API reports every known material including those the account
// holds none of; zero counts are dropped here.
func (c *Client) Materials(ctx context.Context, key string) (map[app.ItemID]int, error) {
	var rows []struct {
		ID    app.ItemID `json:"id"`
		Count int        `json:"count"`
	}
	if err := c.get(ctx, "/account/materials", key, &rows); err != nil {
		return nil, err
	}
	quantities := make(map[app.ItemID]int)
	for _, r := range rows {
		if r.Count > 0 {
			quantities[r.ID] += r.Count
		}
	}
	return quantities, nil
}
