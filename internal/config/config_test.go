package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, ":50051", cfg.Server.GRPC.Address)
	assert.Equal(t, "/ws", cfg.Server.WebSocket.Path)
	assert.Equal(t, time.Minute, cfg.Server.WebSocket.PongWait)
	assert.Equal(t, LogFormatConsole, cfg.Logging.Format)
	assert.Equal(t, DefaultGameConfig(), cfg.Game)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  grpc:
    address: ":6000"
database:
  driver: postgres
  url: postgres://localhost/tycoon
  max_conns: 5
logging:
  level: debug
  format: json
game:
  auction_countdown: 3s
  pass_go_bonus: 500
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.Server.GRPC.Address)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, int32(5), cfg.Database.MaxConns)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3*time.Second, cfg.Game.AuctionCountdown)
	assert.Equal(t, 500, cfg.Game.PassGoBonus)
	assert.Equal(t, 100000, cfg.Game.StartingMoney)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TYCOON_GAME_STARTING_MONEY", "5000")
	t.Setenv("TYCOON_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Game.StartingMoney)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"postgres without url", "database:\n  driver: postgres\n"},
		{"unknown driver", "database:\n  driver: mongo\n"},
		{"zero countdown", "game:\n  auction_countdown: 0s\n"},
		{"player bounds", "game:\n  min_players: 4\n  max_players: 2\n"},
		{"single player games", "game:\n  min_players: 1\n"},
		{"unknown log format", "logging:\n  format: xml\n"},
		{"unknown log level", "logging:\n  level: loud\n"},
		{"zero pong wait", "server:\n  websocket:\n    pong_wait: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
