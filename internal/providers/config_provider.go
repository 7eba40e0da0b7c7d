package providers

import (
	"fmt"
	"jamsync/internal/structures"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.SetDefault("authority.timeout", 10*time.Second)
	viper.SetDefault("authority.pollInterval", 15*time.Second)
	viper.SetDefault("authority.pollJitterMax", 5*time.Second)
	viper.SetDefault("authority.retryMax", 2)
	viper.SetDefault("engine.cooldown", 3*time.Second)
	viper.SetDefault("engine.interactionWindow", 2*time.Second)
	viper.SetDefault("engine.staleThreshold", 3)
	viper.SetDefault("engine.activityLimit", 50)
	viper.SetDefault("modes.battleDismissAfter", 8*time.Second)
	viper.SetDefault("modes.clockWarnThreshold", time.Minute)
	viper.SetDefault("modes.clockUrgentThreshold", 10*time.Second)

	viper.BindEnv("logger.level", "JAMSYNC_LOG_LEVEL")
	viper.BindEnv("authority.baseUrl", "JAMSYNC_AUTHORITY_URL")
	viper.BindEnv("authority.pollInterval", "JAMSYNC_POLL_INTERVAL")
	viper.BindEnv("persistence.saveInterval", "JAMSYNC_SAVE_INTERVAL")
	viper.BindEnv("cache.enabled", "JAMSYNC_CACHE_ENABLED")
	viper.BindEnv("cache.size", "JAMSYNC_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "JamSyncDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
