package main

import (
	"time"

	"github.com/quantfold/gexengine/internal/notify"
	"github.com/quantfold/gexengine/internal/provider"
	"github.com/quantfold/gexengine/internal/signal"
	"github.com/quantfold/gexengine/internal/store"
)

func buildProvider() *provider.HTTPProvider {
	return provider.NewHTTPProvider(
		cfg.Provider.BaseURL,
		cfg.Provider.APIKey,
		cfg.Provider.RatePerSecond,
		time.Duration(cfg.Provider.TimeoutSec)*time.Second,
		time.Duration(cfg.Provider.RetryDelaySec)*time.Second,
		cfg.Provider.RetryCount,
		logger,
	)
}

// buildAlertStore returns the ClickHouse alert store when persistence is
// enabled, nil otherwise.
func buildAlertStore() (store.AlertStore, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ch, err := store.NewClickHouse(store.ClickHouseConfig{
		Host:     cfg.ClickHouse.Host,
		Port:     cfg.ClickHouse.Port,
		Database: cfg.ClickHouse.Database,
		User:     cfg.ClickHouse.User,
		Password: cfg.ClickHouse.Password,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return ch, func() { _ = ch.Close() }, nil
}

// buildSnapshotStore prefers ClickHouse and falls back to the JSONL file
// source for offline backtests.
func buildSnapshotStore() (store.SnapshotStore, func(), error) {
	if cfg.ClickHouse.Enabled {
		ch, err := store.NewClickHouse(store.ClickHouseConfig{
			Host:     cfg.ClickHouse.Host,
			Port:     cfg.ClickHouse.Port,
			Database: cfg.ClickHouse.Database,
			User:     cfg.ClickHouse.User,
			Password: cfg.ClickHouse.Password,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return ch, func() { _ = ch.Close() }, nil
	}

	return store.NewFileSnapshotStore(cfg.Snapshots.Directory, logger), func() {}, nil
}

func buildNotifier() signal.Notifier {
	if !cfg.Notify.Enabled {
		return notify.NoopNotifier{}
	}
	return notify.NewClient(&cfg.Notify, logger)
}

func buildWindow() *signal.Window {
	return signal.NewWindow(cfg.Engine.Timezone)
}

func syncLogger() {
	_ = logger.Sync()
}
