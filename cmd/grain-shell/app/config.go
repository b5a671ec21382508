package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/grain-editor/grain-shell/internal/config"
)

// loadConfig reads the file named by --config or GRAIN_CONFIG, falling back
// to the defaults when neither is set
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		slog.Debug("No configuration file given, using defaults")
		return config.LoadConfig()
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", path,
		"storage", cfg.Storage.GetType(),
		"data_dir", cfg.Storage.GetDataDir())
	return cfg, nil
}
