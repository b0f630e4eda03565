// Package app wires configuration, storage, the console listeners and
// the management API together.
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/wlipd/internal/controllers/management"
	"github.com/chrissnell/wlipd/internal/eeprom"
	"github.com/chrissnell/wlipd/internal/live"
	"github.com/chrissnell/wlipd/internal/log"
	"github.com/chrissnell/wlipd/internal/server"
	"github.com/chrissnell/wlipd/internal/storage"
	"github.com/chrissnell/wlipd/pkg/config"
)

// App represents the main application.
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance.
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	station, err := a.configProvider.GetStation()
	if err != nil {
		return err
	}

	stationName := "Vantage Pro2"
	if station.StationType == 17 {
		stationName = "Vantage Vue"
	}
	log.Infof("emulating a %s console, archive interval %d min, watchdog %ds/%d",
		stationName, eeprom.ClampInterval(archiveIntervalOrDefault(station)),
		station.MaxLagThreshold, station.MaxLagAction)

	// Process-wide console state, created up front: the virtual EEPROM
	// seeded from station metadata, and the live-packet cache.
	ee := eeprom.New(eeprom.Seed{
		Latitude:        station.Latitude,
		Longitude:       station.Longitude,
		TimeZone:        byte(station.TimeZone),
		RainCollector:   0x01,
		ArchiveInterval: archiveIntervalOrDefault(station),
	})
	cache := live.NewCache()

	store, err := storage.New(ctx, a.configProvider)
	if err != nil {
		return err
	}
	defer store.Close()

	consoleServer := server.New(station, ee, cache, store)
	if err := consoleServer.Start(ctx, &wg); err != nil {
		return err
	}

	// The management API doubles as the live source; without it the
	// emulator still serves archives and dashed live packets.
	controllers, err := a.configProvider.GetControllers()
	if err != nil {
		return err
	}
	for _, controller := range controllers {
		if controller.Type != "management" {
			a.logger.Warnf("unknown controller type %q, skipping", controller.Type)
			continue
		}
		mgmt, err := management.New(controller.ManagementAPI, station, cache, consoleServer)
		if err != nil {
			return err
		}
		if err := mgmt.Start(ctx, &wg); err != nil {
			return err
		}
	}

	log.Info("application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

// archiveIntervalOrDefault falls back to the five-minute interval the
// collector uses when no override is configured.
func archiveIntervalOrDefault(station *config.StationData) int {
	if station.ArchiveInterval == 0 {
		return 5
	}
	return station.ArchiveInterval
}
