package gw2api

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/krashnark/gw2tracker/internal/app"
)

// MaxIDsPerRequest is the maximum number of ids the bulk endpoints
// accept in a single request. Callers with larger id sets must batch.
const MaxIDsPerRequest = 200

// Prices returns the current trading post prices for up to
// [MaxIDsPerRequest] items. Ids without a tradable listing are absent
// from the result; callers decide how to represent them.
func (c *Client) Prices(ctx context.Context, ids []app.ItemID) (map[app.ItemID]app.PriceQuote, error) {
	if len(ids) == 0 {
		return map[app.ItemID]app.PriceQuote{}, nil
	}
	if len(ids) > MaxIDsPerRequest {
		return nil, fmt.Errorf("prices: got %d ids, max is %d: %w", len(ids), MaxIDsPerRequest, app.ErrInvalid)
	}
	var rows []struct {
		ID   app.ItemID `json:"id"`
		Buys *struct {
			UnitPrice int `json:"unit_price"`
			Quantity  int `json:"quantity"`
		} `json:"buys"`
		Sells *struct {
			UnitPrice int `json:"unit_price"`
			Quantity  int `json:"quantity"`
		} `json:"sells"`
	}
	if err := c.get(ctx, "/commerce/prices?ids="+joinIDs(ids), "", &rows); err != nil {
		return nil, err
	}
	quotes := make(map[app.ItemID]app.PriceQuote, len(rows))
	for _, r := range rows {
		q := app.PriceQuote{ItemID: r.ID, HasMarket: true}
		if r.Buys != nil {
			q.BuyUnitPrice = r.Buys.UnitPrice
		}
		if r.Sells != nil {
			q.SellUnitPrice = r.Sells.UnitPrice
		}
		quotes[r.ID] = q
	}
	return quotes, nil
}

// Items returns static metadata for up to [MaxIDsPerRequest] items.
// Unknown ids are absent from the result.
func (c *Client) Items(ctx context.Context, ids []app.ItemID) (map[app.ItemID]app.ItemInfo, error) {
	if len(ids) == 0 {
		return map[app.ItemID]app.ItemInfo{}, nil
	}
	if len(ids) > MaxIDsPerRequest {
		return nil, fmt.Errorf("items: got %d ids, max is %d: %w", len(ids), MaxIDsPerRequest, app.ErrInvalid)
	}
	var rows []struct {
		ID          app.ItemID `json:"id"`
		Name        string     `json:"name"`
		VendorValue int        `json:"vendor_value"`
		Flags       []string   `json:"flags"`
	}
	if err := c.get(ctx, "/items?ids="+joinIDs(ids), "", &rows); err != nil {
		return nil, err
	}
	infos := make(map[app.ItemID]app.ItemInfo, len(rows))
	for _, r := range rows {
		info := app.ItemInfo{ID: r.ID, Name: r.Name, VendorValue: r.VendorValue}
		if slices.Contains(r.Flags, "NoSell") {
			info.VendorValue = 0
		}
		infos[r.ID] = info
	}
	return infos, nil
}

func joinIDs(ids []app.ItemID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}
