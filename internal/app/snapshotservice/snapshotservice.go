// Package snapshotservice builds account snapshots from the GW2 API.
//
// A build fans out one fetch per resource (wallet, bank, material
// storage, shared inventory and every character's inventory and
// equipment) and only assembles a snapshot when every single fetch
// succeeded. There is no partial snapshot: any failure aborts the
// whole build and reports exactly which resources could not be
// retrieved.
package snapshotservice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/krashnark/gw2tracker/internal/app"
	"github.com/krashnark/gw2tracker/internal/gw2api"
)

const defaultConcurrency = 10

// RequiredPermissions are the API key permissions a build needs.
var RequiredPermissions = []string{"account", "wallet", "inventories", "characters"}

// BuildError reports the resources of a failed snapshot build.
type BuildError struct {
	// Failed maps resource names to the error that failed them.
	Failed map[string]error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("snapshot build failed for resources: %s", strings.Join(e.Resources(), ", "))
}

// Resources returns the names of all failed resources in stable order.
func (e *BuildError) Resources() []string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unwrap exposes the underlying fetch errors to errors.Is and errors.As.
func (e *BuildError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// KeyPermissionError reports missing API key permissions.
type KeyPermissionError struct {
	Missing []string
}

func (e *KeyPermissionError) Error() string {
	return fmt.Sprintf("API key is missing permissions: %s", strings.Join(e.Missing, ", "))
}

// SnapshotService builds account snapshots.
type SnapshotService struct {
	// Now returns the current time in UTC. Can be overwritten for tests.
	Now func() time.Time

	gw2         *gw2api.Client
	concurrency int
}

// Params are the arguments for creating a new service with [New].
type Params struct {
	// Client is the API client used for all fetches. Mandatory.
	Client *gw2api.Client
	// Concurrency bounds the number of parallel fetches per build,
	// on top of the client's own global limits.
	Concurrency int
}

// New returns a new snapshot service.
func New(args Params) *SnapshotService {
	if args.Client == nil {
		panic("snapshotservice: client can not be nil")
	}
	s := &SnapshotService{
		gw2:         args.Client,
		concurrency: args.Concurrency,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	return s
}

// ValidateKey checks that an API key is valid and has all permissions
// a build needs. Missing permissions surface as [KeyPermissionError].
func (s *SnapshotService) ValidateKey(ctx context.Context, key string) error {
	t, err := s.gw2.TokenInfo(ctx, key)
	if err != nil {
		return err
	}
	var missing []string
	for _, p := range RequiredPermissions {
		if !t.HasPermission(p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &KeyPermissionError{Missing: missing}
	}
	return nil
}

// capture is one resource fetch of a build. Each capture owns its
// result slot, so the fan-out needs no shared accumulator.
type capture struct {
	resource   string
	fetch      func(context.Context) (map[app.ItemID]int, error)
	quantities map[app.ItemID]int
	err        error
}

// Build captures a new snapshot of the account the key belongs to.
//
// All resource fetches run concurrently and the build waits for every
// one of them before deciding the outcome. When any resource failed
// the build returns a [BuildError] naming all failed resources and no
// snapshot. When the context is cancelled the build aborts promptly
// and returns the context error.
func (s *SnapshotService) Build(ctx context.Context, key string) (*app.Snapshot, error) {
	capturedAt := s.Now()
	slog.Info("Starting snapshot build")

	// The wallet and the character list run in the first wave together
	// with the fixed item resources. The list then fans out into the
	// per character fetches of the second wave.
	var currencies map[app.CurrencyID]int
	var walletErr error
	var characters []string
	var charactersErr error

	captures := []*capture{
		{resource: "bank", fetch: func(ctx context.Context) (map[app.ItemID]int, error) {
			return s.gw2.Bank(ctx, key)
		}},
		{resource: "materials", fetch: func(ctx context.Context) (map[app.ItemID]int, error) {
			return s.gw2.Materials(ctx, key)
		}},
		{resource: "shared inventory", fetch: func(ctx context.Context) (map[app.ItemID]int, error) {
			return s.gw2.SharedInventory(ctx, key)
		}},
	}

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	g.Go(func() error {
		currencies, walletErr = s.gw2.Wallet(ctx, key)
		return nil
	})
	g.Go(func() error {
		characters, charactersErr = s.gw2.Characters(ctx, key)
		return nil
	})
	for _, c := range captures {
		g.Go(func() error {
			c.quantities, c.err = c.fetch(ctx)
			return nil
		})
	}
	g.Wait()

	if charactersErr == nil {
		g = new(errgroup.Group)
		g.SetLimit(s.concurrency)
		characterCaptures := make([]*capture, 0, len(characters)*2)
		for _, name := range characters {
			characterCaptures = append(characterCaptures,
				&capture{
					resource: fmt.Sprintf("character %q inventory", name),
					fetch: func(ctx context.Context) (map[app.ItemID]int, error) {
						return s.gw2.CharacterInventory(ctx, key, name)
					},
				},
				&capture{
					resource: fmt.Sprintf("character %q equipment", name),
					fetch: func(ctx context.Context) (map[app.ItemID]int, error) {
						return s.gw2.CharacterEquipment(ctx, key, name)
					},
				},
			)
		}
		for _, c := range characterCaptures {
			g.Go(func() error {
				c.quantities, c.err = c.fetch(ctx)
				return nil
			})
		}
		g.Wait()
		captures = append(captures, characterCaptures...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := make(map[string]error)
	if walletErr != nil {
		failed["wallet"] = walletErr
	}
	if charactersErr != nil {
		failed["characters"] = charactersErr
	}
	for _, c := range captures {
		if c.err != nil {
			failed[c.resource] = c.err
		}
	}
	if len(failed) > 0 {
		err := &BuildError{Failed: failed}
		slog.Warn("Snapshot build failed", "resources", err.Resources())
		return nil, err
	}

	items := make(map[app.ItemID]int)
	for _, c := range captures {
		for id, q := range c.quantities {
			items[id] += q
		}
	}
	snapshot := app.NewSnapshot(capturedAt, items, currencies)
	slog.Info("Completed snapshot build", "items", len(items), "characters", len(characters))
	return snapshot, nil
}
