package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	World    WorldConfig    `mapstructure:"world"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type PubSubConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	LocalBuf      int    `mapstructure:"local_buf"`
	// RelayBuf is the relay's outgoing queue length.
	RelayBuf int `mapstructure:"relay_buf"`
	// SkipWorked keeps per-tick job_worked events off the stream.
	SkipWorked bool `mapstructure:"skip_worked"`
}

type WorldConfig struct {
	Width           int     `mapstructure:"width"`
	Height          int     `mapstructure:"height"`
	Diagonal        bool    `mapstructure:"diagonal"`
	TickMs          int     `mapstructure:"tick_ms"`
	CharacterSpeed  float64 `mapstructure:"character_speed"`
	StartCharacters int     `mapstructure:"start_characters"`
	StartFloor      int     `mapstructure:"start_floor"`
	// CatalogPath overrides the built-in furniture catalog.
	CatalogPath string `mapstructure:"catalog_path"`
}

type SnapshotConfig struct {
	Dir              string        `mapstructure:"dir"`
	AutosaveName     string        `mapstructure:"autosave_name"`
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
	// LoadOnStart restores AutosaveName from the database at startup when present.
	LoadOnStart bool `mapstructure:"load_on_start"`
}

type AuditConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type SecurityConfig struct {
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket/SSE origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// AdminIPs restricts /api/admin to these addresses or CIDRs when set.
	AdminIPs []string `mapstructure:"admin_ips"`
}

// TickInterval is the world tick period.
func (c WorldConfig) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/colony.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("pubsub.local_buf", 256)
	v.SetDefault("pubsub.relay_buf", 1024)
	v.SetDefault("pubsub.skip_worked", true)
	v.SetDefault("world.width", 100)
	v.SetDefault("world.height", 100)
	v.SetDefault("world.diagonal", false)
	v.SetDefault("world.tick_ms", 50)
	v.SetDefault("world.character_speed", 5)
	v.SetDefault("world.start_characters", 3)
	v.SetDefault("world.start_floor", 2)
	v.SetDefault("snapshot.dir", "./data/saves")
	v.SetDefault("snapshot.autosave_name", "autosave")
	v.SetDefault("snapshot.autosave_interval", "5m")
	v.SetDefault("snapshot.load_on_start", false)
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", "2s")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
}

// Load reads config from the given YAML file path. An empty path yields the
// defaults. Environment variables such as BASEBUILD_SERVER_PORT override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("basebuild")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("config: world size %dx%d", c.World.Width, c.World.Height)
	}
	if c.World.TickMs <= 0 {
		return fmt.Errorf("config: world.tick_ms must be positive, got %d", c.World.TickMs)
	}
	switch c.Database.Mode {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config: unknown database.mode %q", c.Database.Mode)
	}
	return nil
}
