// Package storage defines the archive record store consumed by the
// download protocol, and selects a backend from configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/chrissnell/wlipd/internal/storage/sqlitestore"
	"github.com/chrissnell/wlipd/internal/storage/timescaledb"
	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/config"
)

// MaxDownloadRecords caps a single archive download, matching the
// original service's 50 000-record ceiling.
const MaxDownloadRecords = 50000

// ArchiveStore yields archived observations for DMP/DMPAFT downloads.
type ArchiveStore interface {
	// Iterate returns records with dateTime strictly after the given
	// epoch, in ascending timestamp order, at most limit records.
	Iterate(ctx context.Context, after int64, limit int) ([]*types.Observation, error)

	Close() error
}

// New selects and opens the archive store named by the storage binding.
// An empty binding yields a store with no records, which the download
// protocol serves as an empty page set.
func New(ctx context.Context, configProvider config.ConfigProvider) (ArchiveStore, error) {
	storageConfig, err := configProvider.GetStorageConfig()
	if err != nil {
		return nil, err
	}

	switch storageConfig.Binding {
	case "":
		return emptyStore{}, nil
	case "timescaledb":
		return timescaledb.New(ctx, storageConfig.TimescaleDB)
	case "sqlite":
		return sqlitestore.New(storageConfig.SQLite)
	default:
		return nil, fmt.Errorf("unknown storage binding %q", storageConfig.Binding)
	}
}

// emptyStore serves a configuration with no archive binding.
type emptyStore struct{}

func (emptyStore) Iterate(context.Context, int64, int) ([]*types.Observation, error) {
	return nil, nil
}

func (emptyStore) Close() error { return nil }
