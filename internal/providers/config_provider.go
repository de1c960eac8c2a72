package providers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mentiond/internal/structures"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("logger.level", "MENTIOND_LOG_LEVEL")
	viper.BindEnv("backend.token", "MENTIOND_BACKEND_TOKEN")
	viper.BindEnv("backend.scopeId", "MENTIOND_SCOPE_ID")
	viper.BindEnv("stream.reconnectDelay", "MENTIOND_RECONNECT_DELAY")
	viper.BindEnv("persistence.saveInterval", "MENTIOND_SAVE_INTERVAL")
	viper.BindEnv("cache.enabled", "MENTIOND_CACHE_ENABLED")
	viper.BindEnv("cache.size", "MENTIOND_CACHE_SIZE")

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

	applyDefaults(&conf)

	conf.AppName = "MentionFeedDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}

func applyDefaults(conf *structures.Config) {
	if conf.Backend.SnapshotLimit <= 0 {
		conf.Backend.SnapshotLimit = 50
	}
	if conf.Backend.RequestTimeout <= 0 {
		conf.Backend.RequestTimeout = 15 * time.Second
	}
	if conf.Stream.ReconnectDelay <= 0 {
		conf.Stream.ReconnectDelay = 5 * time.Second
	}
	if conf.Feed.MaxPendingEvents <= 0 {
		conf.Feed.MaxPendingEvents = 256
	}
	if conf.Cache.TTL <= 0 {
		conf.Cache.TTL = 2 * time.Second
	}
}
