// Package main provides wlipd, a WeatherLinkIP console emulator that
// serves the Davis Vantage protocol to legacy weather desktop clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/chrissnell/wlipd/internal/app"
	"github.com/chrissnell/wlipd/internal/constants"
	"github.com/chrissnell/wlipd/internal/log"
	"github.com/chrissnell/wlipd/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "wlipd.yaml", "Path to YAML configuration file")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("wlipd %s (%s/%s)\n", constants.Version, runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	configProvider, err := createConfigProvider(*cfgFile)
	if err != nil {
		fmt.Printf("Failed to create config provider: %v\n", err)
		os.Exit(1)
	}
	defer configProvider.Close()

	station, err := configProvider.GetStation()
	if err != nil {
		fmt.Printf("Failed to read config: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(*debug || station.DebugDetail > 0, station.LogFile); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	application := app.New(configProvider, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

func createConfigProvider(cfgFile string) (config.ConfigProvider, error) {
	filename, _ := filepath.Abs(cfgFile)

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file does not exist: %s", filename)
	}

	provider := config.NewYAMLProvider(filename)
	if _, err := provider.LoadConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return config.NewCachedProvider(provider, 30*time.Second), nil
}
