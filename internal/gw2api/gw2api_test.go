package gw2api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/krashnark/gw2tracker/internal/app"
	"github.com/krashnark/gw2tracker/internal/gw2api"
)

func newClient() *gw2api.Client {
	return gw2api.New(gw2api.Params{
		HTTPClient:      http.DefaultClient,
		ThrottleBackoff: time.Millisecond,
	})
}

func TestNew(t *testing.T) {
	t.Run("should panic when trying to create without client", func(t *testing.T) {
		assert.Panics(t, func() {
			gw2api.New(gw2api.Params{})
		})
	})
}

func TestWallet(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	ctx := context.Background()
	t.Run("should return wallet balances", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/account/wallet",
			httpmock.NewJsonResponderOrPanic(200, []map[string]any{
				{"id": 1, "value": 100001},
				{"id": 4, "value": 0},
				{"id": 23, "value": 9},
			}))
		x, err := newClient().Wallet(ctx, "key")
		if assert.NoError(t, err) {
			assert.Equal(t, map[app.CurrencyID]int{1: 100001, 23: 9}, x)
		}
	})
	t.Run("should return Unauthorized for an invalid key without retrying", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/account/wallet",
			httpmock.NewJsonResponderOrPanic(401, map[string]any{"text": "Invalid access token"}))
		_, err := newClient().Wallet(ctx, "bad-key")
		assert.ErrorIs(t, err, gw2api.ErrUnauthorized)
		assert.Equal(t, 1, httpmock.GetTotalCallCount())
	})
	t.Run("should return Malformed for an undecodable body", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/account/wallet",
			httpmock.NewStringResponder(200, "not json"))
		_, err := newClient().Wallet(ctx, "key")
		assert.ErrorIs(t, err, gw2api.ErrMalformed)
	})
	t.Run("should return Unreachable for a server error", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/account/wallet",
			httpmock.NewStringResponder(502, "bad gateway"))
		_, err := newClient().Wallet(ctx, "key")
		assert.ErrorIs(t, err, gw2api.ErrUnreachable)
	})
}

func TestThrottling(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	ctx := context.Background()
	t.Run("should retry after a throttling response and succeed", func(t *testing.T) {
		httpmock.Reset()
		calls := 0
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/account/wallet",
			func(req *http.Request) (*http.Response, error) {
				calls++
				if calls == 1 {
					resp := httpmock.NewStringResponse(429, "too many requests")
					resp.Header.Set("Retry-After", "0")
					return resp, nil
				}
				return httpmock.NewJsonResponse(200, []map[string]any{{"id": 1, "value": 5}})
			})
		x, err := newClient().Wallet(ctx, "key")
		if assert.NoError(t, err) {
			assert.Equal(t, map[app.CurrencyID]int{1: 5}, x)
			assert.Equal(t, 2, calls)
		}
	})
	t.Run("should surface Throttled after exhausting retries", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/account/wallet",
			httpmock.NewStringResponder(429, "too many requests"))
		c := gw2api.New(gw2api.Params{
			HTTPClient:      http.DefaultClient,
			ThrottleRetries: 2,
			ThrottleBackoff: time.Millisecond,
		})
		_, err := c.Wallet(ctx, "key")
		assert.ErrorIs(t, err, gw2api.ErrThrottled)
		assert.Equal(t, 3, httpmock.GetTotalCallCount())
	})
	t.Run("should stop retrying when the context is cancelled", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/account/wallet",
			httpmock.NewStringResponder(429, "too many requests"))
		c := gw2api.New(gw2api.Params{
			HTTPClient:      http.DefaultClient,
			ThrottleBackoff: time.Minute,
		})
		ctx2, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		_, err := c.Wallet(ctx2, "key")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBankAndInventories(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	ctx := context.Background()
	t.Run("should merge bank slots and skip empty ones", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/account/bank",
			httpmock.NewJsonResponderOrPanic(200, []any{
				map[string]any{"id": 19700, "count": 120},
				nil,
				map[string]any{"id": 19700, "count": 30},
				map[string]any{"id": 32134, "charges": 7, "count": 1},
			}))
		x, err := newClient().Bank(ctx, "key")
		if assert.NoError(t, err) {
			// charges win over count for charged items
			assert.Equal(t, map[app.ItemID]int{19700: 150, 32134: 7}, x)
		}
	})
	t.Run("should skip materials the account holds none of", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/account/materials",
			httpmock.NewJsonResponderOrPanic(200, []map[string]any{
				{"id": 19700, "count": 0},
				{"id": 19701, "count": 250},
			}))
		x, err := newClient().Materials(ctx, "key")
		if assert.NoError(t, err) {
			assert.Equal(t, map[app.ItemID]int{19701: 250}, x)
		}
	})
	t.Run("should merge character bags and skip empty bags and slots", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/characters/Mad%20Max/inventory",
			httpmock.NewJsonResponderOrPanic(200, map[string]any{
				"bags": []any{
					map[string]any{"inventory": []any{
						map[string]any{"id": 19700, "count": 5},
						nil,
					}},
					nil,
					map[string]any{"inventory": []any{
						map[string]any{"id": 19700, "count": 2},
						map[string]any{"id": 24295, "count": 1},
					}},
				},
			}))
		x, err := newClient().CharacterInventory(ctx, "key", "Mad Max")
		if assert.NoError(t, err) {
			assert.Equal(t, map[app.ItemID]int{19700: 7, 24295: 1}, x)
		}
	})
	t.Run("should count each equipped item once", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/characters/Rytlock/equipment",
			httpmock.NewJsonResponderOrPanic(200, map[string]any{
				"equipment": []map[string]any{
					{"id": 80190, "slot": "Coat"},
					{"id": 80205, "slot": "Boots"},
				},
			}))
		x, err := newClient().CharacterEquipment(ctx, "key", "Rytlock")
		if assert.NoError(t, err) {
			assert.Equal(t, map[app.ItemID]int{80190: 1, 80205: 1}, x)
		}
	})
	t.Run("should return character names", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/characters",
			httpmock.NewJsonResponderOrPanic(200, []string{"Mad Max", "Rytlock"}))
		x, err := newClient().Characters(ctx, "key")
		if assert.NoError(t, err) {
			assert.Equal(t, []string{"Mad Max", "Rytlock"}, x)
		}
	})
}

func TestPrices(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	ctx := context.Background()
	t.Run("should return quotes keyed by item id", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/commerce/prices?ids=19700,24295",
			httpmock.NewJsonResponderOrPanic(200, []map[string]any{
				{
					"id":    19700,
					"buys":  map[string]any{"unit_price": 60, "quantity": 1000},
					"sells": map[string]any{"unit_price": 50, "quantity": 2000},
				},
				{
					"id":    24295,
					"sells": map[string]any{"unit_price": 9, "quantity": 12},
				},
			}))
		x, err := newClient().Prices(ctx, []app.ItemID{19700, 24295})
		if assert.NoError(t, err) {
			assert.Equal(t, app.PriceQuote{ItemID: 19700, BuyUnitPrice: 60, SellUnitPrice: 50, HasMarket: true}, x[19700])
			assert.Equal(t, app.PriceQuote{ItemID: 24295, SellUnitPrice: 9, HasMarket: true}, x[24295])
		}
	})
	t.Run("should omit untradable ids from the result", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/commerce/prices?ids=19700,77604",
			httpmock.NewJsonResponderOrPanic(206, []map[string]any{
				{
					"id":    19700,
					"buys":  map[string]any{"unit_price": 60, "quantity": 1000},
					"sells": map[string]any{"unit_price": 50, "quantity": 2000},
				},
			}))
		x, err := newClient().Prices(ctx, []app.ItemID{19700, 77604})
		if assert.NoError(t, err) {
			assert.Len(t, x, 1)
			_, found := x[77604]
			assert.False(t, found)
		}
	})
	t.Run("should reject more ids than one request allows", func(t *testing.T) {
		ids := make([]app.ItemID, gw2api.MaxIDsPerRequest+1)
		for i := range ids {
			ids[i] = app.ItemID(i + 1)
		}
		_, err := newClient().Prices(ctx, ids)
		assert.ErrorIs(t, err, app.ErrInvalid)
	})
	t.Run("should return empty result for no ids without a request", func(t *testing.T) {
		httpmock.Reset()
		x, err := newClient().Prices(ctx, nil)
		if assert.NoError(t, err) {
			assert.Empty(t, x)
			assert.Equal(t, 0, httpmock.GetTotalCallCount())
		}
	})
}

func TestItems(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	ctx := context.Background()
	t.Run("should return item metadata and zero vendor value for NoSell items", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/items?ids=19700,77604",
			httpmock.NewJsonResponderOrPanic(200, []map[string]any{
				{"id": 19700, "name": "Copper Ore", "vendor_value": 3, "flags": []string{}},
				{"id": 77604, "name": "Reward Token", "vendor_value": 80, "flags": []string{"NoSell", "AccountBound"}},
			}))
		x, err := newClient().Items(ctx, []app.ItemID{19700, 77604})
		if assert.NoError(t, err) {
			assert.Equal(t, app.ItemInfo{ID: 19700, Name: "Copper Ore", VendorValue: 3}, x[19700])
			assert.Equal(t, app.ItemInfo{ID: 77604, Name: "Reward Token", VendorValue: 0}, x[77604])
		}
	})
}

func TestTokenInfo(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	ctx := context.Background()
	t.Run("should return token permissions", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/tokeninfo",
			httpmock.NewJsonResponderOrPanic(200, map[string]any{
				"id":          "ABCD",
				"name":        "tracker",
				"permissions": []string{"account", "wallet", "inventories", "characters"},
			}))
		x, err := newClient().TokenInfo(ctx, "key")
		if assert.NoError(t, err) {
			assert.True(t, x.HasPermission("wallet"))
			assert.False(t, x.HasPermission("tradingpost"))
		}
	})
	t.Run("should map an invalid key to Unauthorized", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			"https://api.guildwars2.com/v2/tokeninfo",
			httpmock.NewJsonResponderOrPanic(403, map[string]any{"text": "invalid key"}))
		_, err := newClient().TokenInfo(ctx, "key")
		assert.ErrorIs(t, err, gw2api.ErrUnauthorized)
	})
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("sentinels should be distinct", func(t *testing.T) {
		sentinels := []error{gw2api.ErrUnauthorized, gw2api.ErrThrottled, gw2api.ErrUnreachable, gw2api.ErrMalformed}
		for i, a := range sentinels {
			for j, b := range sentinels {
				if i != j {
					assert.False(t, errors.Is(a, b))
				}
			}
		}
	})
}
