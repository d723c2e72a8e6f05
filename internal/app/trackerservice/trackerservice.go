// Package trackerservice wires the engine together.
//
// It owns no algorithmic content: snapshots come from the snapshot
// service, prices and item names from the market service and the diff
// and valuation from the app package. Its operations are the ones a
// presentation layer would invoke.
package trackerservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ErikKalkoken/go-set"

	"github.com/krashnark/gw2tracker/internal/app"
	"github.com/krashnark/gw2tracker/internal/app/marketservice"
	"github.com/krashnark/gw2tracker/internal/app/snapshotservice"
	"github.com/krashnark/gw2tracker/internal/app/storage"
)

// settingSessionStart holds the id of the snapshot a running session started with.
const settingSessionStart = "session-start-snapshot-id"

// ErrNoSession is returned when an operation needs a running session
// and there is none.
var ErrNoSession = errors.New("no running session")

// TrackerService tracks the gold gain of play sessions.
type TrackerService struct {
	st        *storage.Storage
	snapshots *snapshotservice.SnapshotService
	market    *marketservice.MarketService
}

// Params are the arguments for creating a new service with [New].
// All fields are mandatory.
type Params struct {
	Storage         *storage.Storage
	SnapshotService *snapshotservice.SnapshotService
	MarketService   *marketservice.MarketService
}

// New returns a new tracker service.
func New(args Params) *TrackerService {
	if args.Storage == nil {
		panic("trackerservice: storage can not be nil")
	}
	if args.SnapshotService == nil {
		panic("trackerservice: snapshot service can not be nil")
	}
	if args.MarketService == nil {
		panic("trackerservice: market service can not be nil")
	}
	return &TrackerService{
		st:        args.Storage,
		snapshots: args.SnapshotService,
		market:    args.MarketService,
	}
}

// ValidateKey checks that an API key is usable for tracking.
func (s *TrackerService) ValidateKey(ctx context.Context, key string) error {
	return s.snapshots.ValidateKey(ctx, key)
}

// BuildSnapshot captures a new account snapshot and persists it.
// It returns the id of the stored snapshot together with the snapshot.
func (s *TrackerService) BuildSnapshot(ctx context.Context, key string) (int64, *app.Snapshot, error) {
	x, err := s.snapshots.Build(ctx, key)
	if err != nil {
		return 0, nil, err
	}
	id, err := s.st.CreateSnapshot(ctx, x)
	if err != nil {
		return 0, nil, err
	}
	return id, x, nil
}

// StartSession captures a snapshot and remembers it as the start of a
// new session. A previously running session is replaced.
func (s *TrackerService) StartSession(ctx context.Context, key string) (*app.Snapshot, error) {
	id, x, err := s.BuildSnapshot(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if err := s.st.SetSetting(ctx, settingSessionStart, strconv.FormatInt(id, 10)); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	slog.Info("Started session", "snapshotID", id, "capturedAt", x.CapturedAt())
	return x, nil
}

// SessionStartedAt returns the capture time of the running session's
// start snapshot. Returns [ErrNoSession] when no session is running.
func (s *TrackerService) SessionStartedAt(ctx context.Context) (time.Time, error) {
	x, err := s.sessionStart(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return x.CapturedAt(), nil
}

// EndSession captures a snapshot, values it against the running
// session's start snapshot and ends the session. Returns
// [ErrNoSession] when no session is running. The session keeps running
// when the end snapshot or the valuation fails.
func (s *TrackerService) EndSession(ctx context.Context, key string) (*app.ValuationReport, error) {
	start, err := s.sessionStart(ctx)
	if err != nil {
		return nil, err
	}
	_, end, err := s.BuildSnapshot(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	report, err := s.Compare(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	if err := s.st.DeleteSetting(ctx, settingSessionStart); err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}
	slog.Info("Ended session", "total", app.FormatCoins(report.Total))
	return report, nil
}

// Compare values the changes between two snapshots with fresh prices.
//
// Comparing in reverse capture order is allowed and negates every
// delta, but is usually a caller mistake and therefore logged.
func (s *TrackerService) Compare(ctx context.Context, start, end *app.Snapshot) (*app.ValuationReport, error) {
	if start == nil || end == nil {
		return nil, fmt.Errorf("compare: nil snapshot: %w", app.ErrInvalid)
	}
	if end.CapturedAt().Before(start.CapturedAt()) {
		slog.Warn("Comparing snapshots in reverse capture order",
			"start", start.CapturedAt(), "end", end.CapturedAt())
	}
	diff := app.Compare(start, end)
	ids := set.Of(diff.ItemIDs()...)
	prices, err := s.market.ResolvePrices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}
	names, err := s.market.GetOrCreateItemInfos(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}
	report := app.Valuate(diff, prices, names)
	report.Start = start.CapturedAt()
	report.End = end.CapturedAt()
	return report, nil
}

// CompareStored values the changes between two stored snapshots.
func (s *TrackerService) CompareStored(ctx context.Context, startID, endID int64) (*app.ValuationReport, error) {
	start, err := s.st.GetSnapshot(ctx, startID)
	if err != nil {
		return nil, err
	}
	end, err := s.st.GetSnapshot(ctx, endID)
	if err != nil {
		return nil, err
	}
	return s.Compare(ctx, start, end)
}

func (s *TrackerService) sessionStart(ctx context.Context) (*app.Snapshot, error) {
	v, err := s.st.GetSetting(ctx, settingSessionStart)
	if errors.Is(err, app.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session start snapshot id %q: %w", v, app.ErrInvalid)
	}
	x, err := s.st.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return x, nil
}
