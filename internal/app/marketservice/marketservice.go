// Package marketservice resolves trading post prices and item metadata.
//
// Prices are always fetched fresh from the API, item metadata is cached
// in the local database and only fetched for items not seen before.
// Both resolutions batch their id sets into requests of the maximum
// size the bulk endpoints accept and issue the batches concurrently.
package marketservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ErikKalkoken/go-set"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/krashnark/gw2tracker/internal/app"
	"github.com/krashnark/gw2tracker/internal/app/storage"
	"github.com/krashnark/gw2tracker/internal/gw2api"
)

const defaultConcurrency = 4

// MarketService resolves prices and item metadata.
type MarketService struct {
	gw2         *gw2api.Client
	st          *storage.Storage
	sfg         *singleflight.Group
	concurrency int
}

// Params are the arguments for creating a new service with [New].
type Params struct {
	// Client is the API client used for all fetches. Mandatory.
	Client *gw2api.Client
	// Storage is the metadata cache. Mandatory.
	Storage *storage.Storage
	// Concurrency bounds the number of parallel batch requests.
	Concurrency int
}

// New returns a new market service.
func New(args Params) *MarketService {
	if args.Client == nil {
		panic("marketservice: client can not be nil")
	}
	if args.Storage == nil {
		panic("marketservice: storage can not be nil")
	}
	s := &MarketService{
		gw2:         args.Client,
		st:          args.Storage,
		sfg:         new(singleflight.Group),
		concurrency: args.Concurrency,
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	return s
}

// ResolvePrices returns a fresh price quote for every given item.
// Items without a tradable listing are returned with a zero quote that
// is marked as having no market. The result has an entry for every
// requested id, in any order of the input.
func (s *MarketService) ResolvePrices(ctx context.Context, ids set.Set[app.ItemID]) (map[app.ItemID]app.PriceQuote, error) {
	quotes := make(map[app.ItemID]app.PriceQuote, ids.Size())
	if ids.Size() == 0 {
		return quotes, nil
	}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for chunk := range slices.Chunk(slices.Collect(ids.All()), gw2api.MaxIDsPerRequest) {
		g.Go(func() error {
			q, err := s.gw2.Prices(ctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for id, quote := range q {
				quotes[id] = quote
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve prices: %w", err)
	}
	for id := range ids.All() {
		if _, ok := quotes[id]; !ok {
			quotes[id] = app.PriceQuote{ItemID: id}
		}
	}
	slog.Info("Resolved prices", "items", ids.Size())
	return quotes, nil
}

// GetOrCreateItemInfos returns the metadata for the given items,
// fetching and storing metadata for items not in the local cache.
// Items unknown to the API stay absent from the result.
func (s *MarketService) GetOrCreateItemInfos(ctx context.Context, ids set.Set[app.ItemID]) (map[app.ItemID]app.ItemInfo, error) {
	if err := s.addMissingItemInfos(ctx, ids); err != nil {
		return nil, fmt.Errorf("GetOrCreateItemInfos: %w", err)
	}
	infos, err := s.st.ListItemInfos(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreateItemInfos: %w", err)
	}
	return infos, nil
}

func (s *MarketService) addMissingItemInfos(ctx context.Context, ids set.Set[app.ItemID]) error {
	if ids.Size() == 0 {
		return nil
	}
	missing, err := s.st.MissingItemInfos(ctx, ids)
	if err != nil {
		return err
	}
	if missing.Size() == 0 {
		return nil
	}
	key := fmt.Sprintf("addMissingItemInfos-%v", slices.Sorted(missing.All()))
	_, err, _ = s.sfg.Do(key, func() (any, error) {
		infos := make(map[app.ItemID]app.ItemInfo, missing.Size())
		var mu sync.Mutex
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for chunk := range slices.Chunk(slices.Collect(missing.All()), gw2api.MaxIDsPerRequest) {
			g.Go(func() error {
				ii, err := s.gw2.Items(ctx, chunk)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				for id, info := range ii {
					infos[id] = info
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, info := range infos {
			err := s.st.UpdateOrCreateItemInfo(ctx, storage.UpdateOrCreateItemInfoParams{
				ID:          info.ID,
				Name:        info.Name,
				VendorValue: info.VendorValue,
			})
			if err != nil {
				return nil, err
			}
		}
		slog.Info("Stored newly resolved item infos", "count", len(infos))
		return nil, nil
	})
	return err
}
