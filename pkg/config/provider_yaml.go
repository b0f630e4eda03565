package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files.
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider.
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{filename: filename}
}

// LoadConfig loads the complete configuration from the YAML file.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file %s: %w", y.filename, err)
	}

	cfg := &ConfigData{}
	if err := yaml.Unmarshal(cfgFile, cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", y.filename, err)
	}

	cfg.Station.ApplyDefaults()
	return cfg, nil
}

// GetStation returns the station section.
func (y *YAMLProvider) GetStation() (*StationData, error) {
	cfg, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &cfg.Station, nil
}

// GetStorageConfig returns the storage section.
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	cfg, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &cfg.Storage, nil
}

// GetControllers returns the controller sections.
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	cfg, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Controllers, nil
}

// IsReadOnly reports that YAML files are not written back.
func (y *YAMLProvider) IsReadOnly() bool { return true }

// Close is a no-op for file-backed providers.
func (y *YAMLProvider) Close() error { return nil }
