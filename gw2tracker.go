// Package gw2tracker assembles the session gold gain tracker engine.
//
// The engine captures snapshots of a GW2 account's possessions,
// computes the changes between two snapshots and values them with
// current trading post prices. This package only wires the parts
// together; the behavior lives in the internal packages.
package gw2tracker

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/krashnark/gw2tracker/internal/app/marketservice"
	"github.com/krashnark/gw2tracker/internal/app/snapshotservice"
	"github.com/krashnark/gw2tracker/internal/app/storage"
	"github.com/krashnark/gw2tracker/internal/app/trackerservice"
	"github.com/krashnark/gw2tracker/internal/config"
	"github.com/krashnark/gw2tracker/internal/gw2api"
)

// Engine is a fully wired tracker.
type Engine struct {
	Tracker *trackerservice.TrackerService
	Storage *storage.Storage

	db *sql.DB
}

// New returns a new engine for a configuration.
// The caller owns the engine and must close it when done.
func New(cfg config.Config) (*Engine, error) {
	slog.SetLogLoggerLevel(logLevel(cfg.LogLevel))
	db, err := storage.InitDB("file:" + cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	st := storage.New(db)
	rl := gw2api.NewRateLimiter(nil, cfg.MaxInFlight, cfg.RequestsPerSecond, 0)
	client := gw2api.New(gw2api.Params{
		HTTPClient: gw2api.NewHTTPClient(rl, cfg.RequestTimeout, -1),
		BaseURL:    cfg.BaseURL,
		UserAgent:  cfg.UserAgent,
	})
	tracker := trackerservice.New(trackerservice.Params{
		Storage:         st,
		SnapshotService: snapshotservice.New(snapshotservice.Params{Client: client}),
		MarketService:   marketservice.New(marketservice.Params{Client: client, Storage: st}),
	})
	return &Engine{Tracker: tracker, Storage: st, db: db}, nil
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	return e.db.Close()
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
