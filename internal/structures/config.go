package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type BackendConfig struct {
	BaseURL        string        `yaml:"baseUrl" validate:"required|fullUrl"`
	Token          string        `yaml:"token" validate:"required"`
	ScopeID        string        `yaml:"scopeId" validate:"required"`
	SnapshotLimit  int           `yaml:"snapshotLimit"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

type StreamConfig struct {
	URL            string        `yaml:"url" validate:"required|fullUrl"`
	ReconnectDelay time.Duration `yaml:"reconnectDelay"`
}

type FeedConfig struct {
	MaxPendingEvents int `yaml:"maxPendingEvents"`
}

type Persistence struct {
	FilePath     string        `yaml:"filePath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	Backend     BackendConfig `yaml:"backend"`
	Stream      StreamConfig  `yaml:"stream"`
	Feed        FeedConfig    `yaml:"feed"`
	WebServer   Server        `yaml:"webServer"`
	Persistence Persistence   `yaml:"persistence"`
	Logger      LoggerConfig  `yaml:"logger"`
	Cache       CacheConfig   `yaml:"cache"`
	Metrics     MetricsConfig `yaml:"metrics"`
}
