// Package config loads server configuration from YAML and environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TYCOON_DATABASE_URL.
const EnvPrefix = "TYCOON"

// Log formats accepted by logging.format.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Game      GameConfig      `mapstructure:"game"`
}

// ServerConfig configures the transports.
type ServerConfig struct {
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// GRPCConfig configures the gRPC listener.
type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// WebSocketConfig configures the websocket hub and listener.
type WebSocketConfig struct {
	Address        string        `mapstructure:"address"`
	Path           string        `mapstructure:"path"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	// PongWait is how long a connection may stay silent before it is
	// dropped. Pings go out at nine tenths of it.
	PongWait   time.Duration `mapstructure:"pong_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

// DatabaseConfig selects and configures the entity store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // memory | postgres
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// AuthConfig holds the bcrypt hash guarding administrative commands.
type AuthConfig struct {
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

// GameConfig holds the tunable game rules.
type GameConfig struct {
	StartingMoney    int           `mapstructure:"starting_money"`
	PassGoBonus      int           `mapstructure:"pass_go_bonus"`
	AuctionCountdown time.Duration `mapstructure:"auction_countdown"`
	JailField        string        `mapstructure:"jail_field"`
	JailPosition     int           `mapstructure:"jail_position"`
	MinPlayers       int           `mapstructure:"min_players"`
	MaxPlayers       int           `mapstructure:"max_players"`
}

// DefaultGameConfig returns the standard rules.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		StartingMoney:    100000,
		PassGoBonus:      2000,
		AuctionCountdown: 10 * time.Second,
		JailField:        "Prison",
		JailPosition:     10,
		MinPlayers:       2,
		MaxPlayers:       6,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc.address", ":50051")
	v.SetDefault("server.grpc.max_concurrent_streams", 1000)
	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.websocket.allowed_origins", []string{})
	v.SetDefault("server.websocket.write_timeout", 10*time.Second)
	v.SetDefault("server.websocket.pong_wait", 60*time.Second)
	v.SetDefault("server.websocket.send_buffer", 256)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", LogFormatConsole)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "tycoon-server")

	v.SetDefault("auth.admin_password_hash", "")

	game := DefaultGameConfig()
	v.SetDefault("game.starting_money", game.StartingMoney)
	v.SetDefault("game.pass_go_bonus", game.PassGoBonus)
	v.SetDefault("game.auction_countdown", game.AuctionCountdown)
	v.SetDefault("game.jail_field", game.JailField)
	v.SetDefault("game.jail_position", game.JailPosition)
	v.SetDefault("game.min_players", game.MinPlayers)
	v.SetDefault("game.max_players", game.MaxPlayers)
}

// Load reads the YAML file at path, overlays TYCOON_* environment variables
// and validates the result. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail at runtime.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	if c.Server.GRPC.Address == "" {
		return fmt.Errorf("server.grpc.address is required")
	}
	if c.Server.WebSocket.Address == "" {
		return fmt.Errorf("server.websocket.address is required")
	}
	if c.Server.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("server.websocket.send_buffer must be positive")
	}
	if c.Server.WebSocket.PongWait <= 0 {
		return fmt.Errorf("server.websocket.pong_wait must be positive")
	}

	switch c.Logging.Format {
	case LogFormatConsole, LogFormatJSON:
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}

	return c.Game.Validate()
}

// Validate checks the game rules.
func (g GameConfig) Validate() error {
	if g.StartingMoney <= 0 {
		return fmt.Errorf("game.starting_money must be positive")
	}
	if g.PassGoBonus < 0 {
		return fmt.Errorf("game.pass_go_bonus must not be negative")
	}
	if g.AuctionCountdown <= 0 {
		return fmt.Errorf("game.auction_countdown must be positive")
	}
	if g.JailPosition < 0 || g.JailPosition >= 40 {
		return fmt.Errorf("game.jail_position must be a board square")
	}
	if g.MinPlayers < 2 || g.MaxPlayers < g.MinPlayers {
		return fmt.Errorf("game.min_players/max_players out of range")
	}
	return nil
}
