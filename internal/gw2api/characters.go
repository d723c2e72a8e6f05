package gw2api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/krashnark/gw2tracker/internal/app"
)

// Characters returns the names of all characters on the account.
func (c *Client) Characters(ctx context.Context, key string) ([]string, error) {
	var names []string
	if err := c.get(ctx, "/characters", key, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// CharacterInventory returns the item quantities in the bags of one character.
func (c *Client) CharacterInventory(ctx context.Context, key string, name string) (map[app.ItemID]int, error) {
	var payload struct {
		Bags []*struct {
			Inventory []*slot `json:"inventory"`
		} `json:"bags"`
	}
	path := "/characters/" + url.PathEscape(name) + "/inventory"
	if err := c.get(ctx, path, key, &payload); err != nil {
		return nil, err
	}
	quantities := make(map[app.ItemID]int)
	for _, bag := range payload.Bags {
		if bag == nil { // empty bag slot
			continue
		}
		if err := addSlots(quantities, bag.Inventory); err != nil {
			return nil, fmt.Errorf("get %s: %w", path, err)
		}
	}
	return quantities, nil
}

// CharacterEquipment returns the equipped items of one character,
// counted once each.
func (c *Client) CharacterEquipment(ctx context.Context, key string, name string) (map[app.ItemID]int, error) {
	var payload struct {
		Equipment []struct {
			ID app.ItemID `json:"id"`
		} `json:"equipment"`
	}
	path := "/characters/" + url.PathEscape(name) + "/equipment"
	if err := c.get(ctx, path, key, &payload); err != nil {
		return nil, err
	}
	quantities := make(map[app.ItemID]int)
	for _, e := range payload.Equipment {
		if e.ID != 0 {
			quantities[e.ID]++
		}
	}
	return quantities, nil
}
