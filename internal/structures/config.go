package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type AuthorityConfig struct {
	BaseURL       string        `yaml:"baseUrl" validate:"required|fullUrl"`
	Timeout       time.Duration `yaml:"timeout" validate:"required|min:1"`
	PollInterval  time.Duration `yaml:"pollInterval" validate:"required|min:1"`
	PollJitterMax time.Duration `yaml:"pollJitterMax"`
	RetryMax      int           `yaml:"retryMax"`
}

type EngineConfig struct {
	Cooldown          time.Duration `yaml:"cooldown"`
	InteractionWindow time.Duration `yaml:"interactionWindow"`
	StaleThreshold    int           `yaml:"staleThreshold"`
	ActivityLimit     int           `yaml:"activityLimit"`
}

type ModesConfig struct {
	BattleDismissAfter   time.Duration `yaml:"battleDismissAfter"`
	ClockWarnThreshold   time.Duration `yaml:"clockWarnThreshold"`
	ClockUrgentThreshold time.Duration `yaml:"clockUrgentThreshold"`
}

type Persistence struct {
	FilePath     string        `yaml:"filePath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
}

type IdentityConfig struct {
	FilePath string `yaml:"filePath" validate:"required|unixPath"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	WebServer   Server          `yaml:"webServer"`
	Authority   AuthorityConfig `yaml:"authority"`
	Engine      EngineConfig    `yaml:"engine"`
	Modes       ModesConfig     `yaml:"modes"`
	Persistence Persistence     `yaml:"persistence"`
	Identity    IdentityConfig  `yaml:"identity"`
	Logger      LoggerConfig    `yaml:"logger"`
	Cache       CacheConfig     `yaml:"cache"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}
