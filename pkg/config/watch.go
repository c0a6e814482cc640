package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/marmos91/burrow/internal/logger"
	"github.com/spf13/viper"
)

// Watch re-reads configPath whenever it changes and passes each valid
// configuration to onChange. Edits that fail to parse or validate are logged
// and skipped. Watching lasts for the life of the process.
func Watch(configPath string, onChange func(*Config)) error {
	if configPath == "" {
		return fmt.Errorf("watch config: no config file path")
	}

	v := viper.New()
	setupViper(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := decode(v)
		if err != nil {
			logger.Warn("Ignoring config change in %s: %v", e.Name, err)
			return
		}

		logger.Info("Config file %s changed, reloading", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}
